// Package tunnel exposes a local port through free SSH reverse-tunnel
// providers, one at a time, letting the operator decide when to give up.
//
// None of the providers report success in a machine-readable way, so every
// attempt ends as "inconclusive" and the operator watching the terminal
// decides whether to try the next one.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/google/uuid"

	"proxyctl/internal/shared/logger"
	"proxyctl/internal/shared/types"
)

// ContinuePrompt is asked after every attempt.
const ContinuePrompt = "Do you want to try next service? Press n if you want to exit."

// launchFailureCode stands in for an exit code when the command never ran
// or was killed by a signal.
const launchFailureCode = 1

// Confirmer answers yes/no questions, usually by asking the operator.
type Confirmer interface {
	AskYesNo(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) AskYesNo(prompt string) bool { return f(prompt) }

// Runner runs a command in the foreground and reports its exit code. err is
// non-nil only when the command could not be started. The child shares the
// terminal's foreground process group, so Ctrl-C reaches it directly.
type Runner interface {
	Run(ctx context.Context, argv []string) (exitCode int, err error)
}

// Outcome is the result of one attempt. It never means success or failure.
type Outcome struct {
	Service  string
	ExitCode int
	Err      error
}

// Orchestrator drives the provider list.
type Orchestrator struct {
	lookPath func(file string) (string, error)
	runner   Runner
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLookPath replaces exec.LookPath for the prerequisite check.
func WithLookPath(f func(string) (string, error)) Option {
	return func(o *Orchestrator) { o.lookPath = f }
}

// WithRunner replaces the foreground process runner.
func WithRunner(r Runner) Option {
	return func(o *Orchestrator) { o.runner = r }
}

// NewOrchestrator creates an Orchestrator that runs real commands attached
// to the current terminal.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		lookPath: exec.LookPath,
		runner:   ExecRunner{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunSequence tries services in order. After each attempt confirm decides
// whether to continue. It returns nil when the list is exhausted or the
// operator declines; it never reports whether a tunnel was established.
func (o *Orchestrator) RunSequence(ctx context.Context, localPort int, services []Service, confirm Confirmer) error {
	l := logger.WithComponent("Tunnel")

	if err := o.checkPrerequisites(services); err != nil {
		l.Error().Err(err).Msg("SSH is not installed. Please install it and try again.")
		return err
	}

	session := uuid.New().String()
	l.Info().Str("session", session).Int("port", localPort).Int("services", len(services)).Msg("Tunneling the WebUI through a free service...")

	for i, svc := range services {
		// ctx only carries termination of the whole tool, never the terminal interrupt.
		if err := ctx.Err(); err != nil {
			return err
		}

		l.Info().Str("session", session).Str("service", svc.Name).Msgf("Try tunneling through %s...", svc.Name)
		outcome := o.attempt(ctx, svc)
		ev := l.Warn().Str("session", session).Str("service", outcome.Service).Int("exit_code", outcome.ExitCode)
		if outcome.Err != nil {
			ev = ev.Err(outcome.Err)
		}
		ev.Msgf("Tunneling through %s exited with code %d. We don't know if it was successful.", outcome.Service, outcome.ExitCode)

		// Ctrl-C ends the client, not the sequence; the operator decides what's next.
		if !confirm.AskYesNo(ContinuePrompt) {
			l.Info().Str("session", session).Msg("Stopping tunnel attempts.")
			return nil
		}
		if i == len(services)-1 {
			l.Info().Str("session", session).Msg("All tunnel services have been tried.")
		}
	}
	return nil
}

func (o *Orchestrator) attempt(ctx context.Context, svc Service) Outcome {
	if len(svc.Command) == 0 {
		return Outcome{Service: svc.Name, ExitCode: launchFailureCode, Err: errors.New("empty command")}
	}
	code, err := o.runner.Run(ctx, svc.Command)
	if err != nil {
		code = launchFailureCode
	}
	return Outcome{Service: svc.Name, ExitCode: code, Err: err}
}

// checkPrerequisites verifies every distinct executable the services need
// before any of them runs.
func (o *Orchestrator) checkPrerequisites(services []Service) error {
	seen := make(map[string]bool)
	for _, svc := range services {
		if len(svc.Command) == 0 || seen[svc.Command[0]] {
			continue
		}
		seen[svc.Command[0]] = true
		if _, err := o.lookPath(svc.Command[0]); err != nil {
			return types.NewError(types.KindPrerequisiteMissing, fmt.Sprintf("%s not found", svc.Command[0]), err)
		}
	}
	return nil
}

// ExecRunner runs commands with the current process's stdio attached.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, argv []string) (int, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		// Killed by a signal.
		return launchFailureCode, nil
	}
	return launchFailureCode, err
}
