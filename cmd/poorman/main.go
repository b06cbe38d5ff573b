package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/ctubio/poorman/pkg/supervisor"
)

func main() {
	root := NewRootCmd()

	err := root.Execute()
	if err == nil {
		return
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		code := exitErr.code
		if code < 0 {
			code = 1
		}
		os.Exit(code)
	}

	var sigErr *supervisor.SignalError
	if errors.As(err, &sigErr) {
		// Re-raise with handlers gone so the exit status carries the
		// signal that ended the run.
		signal.Reset()
		_ = unix.Kill(unix.Getpid(), sigErr.Sig)
		os.Exit(1)
	}

	if isUsage(err) {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
		}
		printUsage(os.Stderr)
		os.Exit(2)
	}

	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
