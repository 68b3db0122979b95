// Command stoneforge is the CLI shell over the orchestration core. It
// owns only the exit-code contract and output formatting from spec.md
// §6; every operation it exposes is a thin wrapper over internal/store,
// internal/graph, internal/dispatch, internal/session, and
// internal/steward. Grounded on the teacher's cmd/bd (one file per
// command group) trimmed to the core's scope; each command is built by
// a newXCmd constructor function.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
)

// Exit codes, per spec.md §6.
const (
	exitSuccess      = 0
	exitGeneral      = 1
	exitInvalidArgs  = 2
	exitNotFound     = 3
	exitValidation   = 4
	exitPermission   = 5
)

var (
	flagRoot    string
	flagJSON    bool
	flagQuiet   bool
)

// result is the {exitCode, data?, message?, error?} envelope spec.md §6
// says the core returns for the CLI to format.
type result struct {
	ExitCode int         `json:"exitCode"`
	Data     interface{} `json:"data,omitempty"`
	Message  string      `json:"message,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// cliError carries the exit code a failed command should terminate
// with, derived from the error's errs.Kind where one is present.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func fail(err error) error {
	var core *errs.Error
	code := exitGeneral
	if errors.As(err, &core) {
		switch core.Kind {
		case errs.KindValidation:
			code = exitValidation
		case errs.KindNotFound:
			code = exitNotFound
		case errs.KindConflict, errs.KindConstraint:
			code = exitValidation
		case errs.KindIdentity:
			code = exitPermission
		case errs.KindStorage:
			code = exitGeneral
		}
	}
	return &cliError{code: code, err: err}
}

// emit prints data/message in the format the global flags select and
// always returns nil: success is reported by returning, not erroring.
func emit(cmd *cobra.Command, data interface{}, message string) error {
	if flagJSON {
		r := result{ExitCode: exitSuccess, Data: data, Message: message}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	if flagQuiet {
		printQuiet(cmd, data)
		return nil
	}
	if message != "" {
		fmt.Fprintln(cmd.OutOrStdout(), message)
	}
	if data != nil {
		b, err := json.MarshalIndent(data, "", "  ")
		if err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
		}
	}
	return nil
}

// printQuiet prints only the id(s) a result names, per spec.md §6's
// --quiet "ids only" contract.
func printQuiet(cmd *cobra.Command, data interface{}) {
	type idHaver interface{ CLIIdentifier() string }
	if v, ok := data.(idHaver); ok {
		fmt.Fprintln(cmd.OutOrStdout(), v.CLIIdentifier())
		return
	}
	if ids, ok := data.([]string); ok {
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stoneforge",
		Short:         "Coordinate autonomous coding agents against a shared task graph",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagRoot, "root", ".", "workspace root (directory containing .stoneforge/)")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit structured JSON output")
	root.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "emit ids only")

	root.AddCommand(
		newInitCmd(),
		newTaskCmd(),
		newDepCmd(),
		newAgentCmd(),
		newPoolCmd(),
		newDispatchCmd(),
		newSessionCmd(),
		newStewardCmd(),
		newSyncCmd(),
	)
	return root
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	ctx, cancel := signalContext()
	defer cancel()

	root := newRootCmd()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		var ce *cliError
		code := exitGeneral
		if errors.As(err, &ce) {
			code = ce.code
			err = ce.err
		}
		if flagJSON {
			enc := json.NewEncoder(os.Stderr)
			_ = enc.Encode(result{ExitCode: code, Error: err.Error()})
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(code)
	}
}
