package container

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"nathanbeddoewebdev/lxdm/internal/domain"

	"al.essio.dev/pkg/shellescape"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// ExitCodeError carries a remote process's non-zero exit status so the
// root command can exit with it.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("remote command exited with status %d", e.Code)
}

// ExitCode returns the remote exit status.
func (e *ExitCodeError) ExitCode() int { return e.Code }

func ExecCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec -- COMMAND [ARGS...]",
		Short: "Run a command inside a container",
		Long: `Run a command inside a running container and stream its output.

The command's arguments are quoted and split again remotely, so a single
quoted argument such as "ls -la /tmp" behaves like separate arguments.
lxdm exits with the remote command's exit status. Without --timeout the
command may run for as long as it needs; with it, lxdm gives up once the
timeout passes and the operation stays tracked for a later resume.

Examples:
  lxdm container exec --name web -- uname -a
  lxdm container exec --name web --env DEBUG=1 -- sh -c 'echo $DEBUG'
  lxdm container exec --name web -t -- bash`,
		Args:         cobra.MinimumNArgs(1),
		RunE:         runExec,
		SilenceUsage: true,
	}

	cmd.Flags().String("name", "", "Container to run the command in (required)")
	cmd.Flags().StringArray("env", nil, "Environment variable KEY=VALUE (repeatable)")
	cmd.Flags().Duration("timeout", 0, "Maximum time to wait for the command (default: until it exits)")
	cmd.Flags().BoolP("stdin", "i", false, "Forward standard input to the command")
	cmd.Flags().BoolP("tty", "t", false, "Put the local terminal in raw mode and forward its size (implies --stdin)")

	return cmd
}

func runExec(cmd *cobra.Command, args []string) error {
	name, err := requireName(cmd)
	if err != nil {
		return err
	}
	envFlags, _ := cmd.Flags().GetStringArray("env")
	env, err := parseEnv(envFlags)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	forwardStdin, _ := cmd.Flags().GetBool("stdin")
	tty, _ := cmd.Flags().GetBool("tty")

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	executor, ok := s.provider.(domain.Executor)
	if !ok {
		return fmt.Errorf("driver %q does not support exec", s.remote.Driver)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	server, err := s.lookup(ctx, name)
	if err != nil {
		return err
	}

	opts := domain.ExecOptions{
		Environment: env,
		Stream:      cmd.OutOrStdout(),
		Timeout:     timeout,
	}
	if !cmd.Flags().Changed("timeout") {
		opts.KeepWaiting = stillRunning
	}
	if forwardStdin || tty {
		opts.Stdin = cmd.InOrStdin()
	}
	if tty {
		restore := makeRaw(s.logger)
		defer restore()
		if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			opts.Width, opts.Height = w, h
		}
	}

	result, err := executor.Execute(ctx, server, commandLine(args), opts)
	if err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}

	s.logger.Debug("exec finished", zap.String("operation", result.OperationID), zap.Int("exit_code", result.ExitCode))
	if !result.Succeeded() {
		return &ExitCodeError{Code: result.ExitCode}
	}
	return nil
}

// stillRunning reports whether a wait ended while the remote process may
// still be running, so only the wait is issued again.
func stillRunning(err error) bool {
	var p interface{ Pending() bool }
	return errors.As(err, &p) && p.Pending()
}

// commandLine joins args into a single command string. A lone argument is
// passed through so callers can supply their own quoting.
func commandLine(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return shellescape.QuoteCommand(args)
}

func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env %q: expected KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}

// makeRaw switches stdin to raw mode when it is a terminal and returns a
// function restoring the previous state.
func makeRaw(logger *zap.Logger) func() {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		logger.Debug("failed to enter raw mode", zap.Error(err))
		return func() {}
	}
	return func() {
		if err := term.Restore(fd, state); err != nil {
			logger.Debug("failed to restore terminal", zap.Error(err))
		}
	}
}
