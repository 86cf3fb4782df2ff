// Package tui contains the interactive huh forms and spinners used by the
// lxdm commands when attached to a terminal.
package tui

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
)

// ErrAborted is returned when a user cancels an interactive flow.
var ErrAborted = errors.New("aborted by user")

// Accessible reports whether forms should run in accessible mode.
func Accessible() bool {
	return os.Getenv("ACCESSIBLE") != ""
}

func runForm(accessible bool, groups ...*huh.Group) error {
	err := huh.NewForm(groups...).WithAccessible(accessible).Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return err
	}
	return nil
}

// Spin runs action behind a spinner written to w. The action's error is
// returned as is; a cancelled spinner yields ErrAborted.
func Spin(ctx context.Context, w io.Writer, title string, action func(ctx context.Context) error) error {
	var actionErr error
	spinErr := spinner.New().
		Title(title).
		Accessible(Accessible()).
		Output(w).
		Context(ctx).
		ActionWithErr(func(ctx context.Context) error {
			actionErr = action(ctx)
			return nil
		}).
		Run()
	if spinErr != nil {
		if errors.Is(spinErr, huh.ErrUserAborted) || errors.Is(spinErr, context.Canceled) {
			return ErrAborted
		}
		return spinErr
	}
	return actionErr
}

func selectHeight(optionCount, max int) int {
	switch {
	case optionCount < 5:
		return 5
	case optionCount > max:
		return max
	default:
		return optionCount
	}
}
