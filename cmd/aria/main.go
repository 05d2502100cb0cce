package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgnsrekt/aria/internal/logging"
	"github.com/dgnsrekt/aria/internal/navigator"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	traceID := logging.NewTraceID()
	return execute(newApp(stderr, traceID), args, os.Stdin, stdout, stderr)
}

func execute(a *app, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx := logging.WithTraceID(context.Background(), a.traceID)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		reportError(stderr, err)
		return 1
	}
	return 0
}

// reportError prints typed failures plainly and anything else with a
// generic prefix, logging the latter.
func reportError(w io.Writer, err error) {
	var coded *navigator.CodedError
	if errors.As(err, &coded) {
		fmt.Fprintf(w, "Error: %s\n", coded.Error())
		return
	}
	slog.Error("unexpected error", "error", err)
	fmt.Fprintf(w, "Unexpected error: %v\n", err)
}

// usageErr marks argument and flag problems as validation failures.
func usageErr(err error) error {
	if err == nil {
		return nil
	}
	return navigator.NewError(navigator.CodeValidation, err.Error(), nil)
}
