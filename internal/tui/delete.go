package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"nathanbeddoewebdev/lxdm/internal/domain"
	"nathanbeddoewebdev/lxdm/internal/providers"

	"github.com/charmbracelet/huh"
)

// ErrDeleteAborted is returned when a user cancels the delete flow.
var ErrDeleteAborted = errors.New("container deletion aborted by user")

// DeleteContainerForm lists the remote's containers, lets the user pick
// one, shows a summary, and asks for confirmation before returning it.
func DeleteContainerForm(ctx context.Context, provider domain.Provider) (*domain.Server, error) {
	accessible := Accessible()

	var servers []domain.Server
	err := Spin(ctx, os.Stderr, "Fetching containers...", func(ctx context.Context) error {
		var err error
		servers, err = providers.ListAll(ctx, provider)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrAborted) {
			return nil, ErrDeleteAborted
		}
		return nil, err
	}

	if len(servers) == 0 {
		return nil, fmt.Errorf("no containers found")
	}

	byName := make(map[string]domain.Server, len(servers))
	for _, s := range servers {
		byName[s.Name] = s
	}

	var selected string
	options := buildServerOptions(servers)

	selectField := huh.NewSelect[string]().
		Title("Select container to delete").
		Options(options...).
		Value(&selected).
		Height(selectHeight(len(options), 12))

	summaryNote := huh.NewNote().
		Title("Container details").
		DescriptionFunc(func() string {
			if s, ok := byName[selected]; ok {
				return buildDeleteSummary(s)
			}
			return ""
		}, &selected)

	confirm := false
	confirmField := huh.NewConfirm().
		Title("Delete this container? This action cannot be undone.").
		Affirmative("Yes, delete").
		Negative("Cancel").
		Value(&confirm)

	if err := runForm(accessible,
		huh.NewGroup(selectField),
		huh.NewGroup(summaryNote, confirmField),
	); err != nil {
		if errors.Is(err, ErrAborted) {
			return nil, ErrDeleteAborted
		}
		return nil, err
	}

	if !confirm {
		return nil, ErrDeleteAborted
	}

	server := byName[selected]
	return &server, nil
}

// buildServerOptions builds select options keyed by container name.
func buildServerOptions(servers []domain.Server) []huh.Option[string] {
	options := make([]huh.Option[string], 0, len(servers))
	for _, s := range servers {
		options = append(options, huh.NewOption(serverOptionLabel(s), s.Name))
	}
	return options
}

func serverOptionLabel(s domain.Server) string {
	parts := []string{s.Name}

	if s.State != "" {
		parts = append(parts, string(s.State))
	}
	if known(s.FlavorID) {
		parts = append(parts, s.FlavorID)
	}
	if ip := s.IPv4(); ip != "" {
		parts = append(parts, ip)
	}

	return strings.Join(parts, " - ")
}

func buildDeleteSummary(s domain.Server) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Name: %s\n", s.Name)
	fmt.Fprintf(&b, "State: %s\n", s.State)
	if s.Status != "" && s.Status != string(s.State) {
		fmt.Fprintf(&b, "Status: %s\n", s.Status)
	}
	if known(s.ImageID) {
		fmt.Fprintf(&b, "Image: %s\n", s.ImageID)
	}
	if known(s.FlavorID) {
		fmt.Fprintf(&b, "Profile: %s\n", s.FlavorID)
	}
	for _, a := range s.Addresses {
		fmt.Fprintf(&b, "IPv%d: %s\n", a.Version, a.Address)
	}
	if s.Ephemeral() {
		b.WriteString("Ephemeral: yes\n")
	}

	return strings.TrimSpace(b.String())
}

// known reports whether v carries a real value rather than a sentinel.
func known(v string) bool {
	return v != "" && v != domain.ValueUnknown && v != domain.ValueNone
}
