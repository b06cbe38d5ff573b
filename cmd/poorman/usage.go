package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/ctubio/poorman/pkg/logmux"
)

// errUsage marks an invocation with no usable command; main prints the
// usage text alone for it, without an error line first.
var errUsage = errors.New("no command given")

// isUsage separates configuration and usage failures, which exit 2 with
// the usage text, from runtime failures, which exit 1. A missing Procfile
// surfaces as fs.ErrNotExist; cobra reports unrecognized commands and
// flags only by message.
func isUsage(err error) bool {
	if errors.Is(err, errUsage) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, logmux.ErrUsage) {
		return true
	}
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: poorman start|exec|source")
	fmt.Fprintln(w, "       poorman start [-f procfile] [-e envfile] [--selective]")
}
