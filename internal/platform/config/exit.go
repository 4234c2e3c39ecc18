package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Exit codes shared by the rebazzar binaries.
const (
	ExitFailure = 1
	// ExitUsage matches the code the flag package uses for bad arguments.
	ExitUsage = 2
)

// Exitf reports a fatal runtime error on stderr, prefixed with the binary
// name, and exits with ExitFailure.
func Exitf(format string, args ...any) {
	os.Exit(reportFatal(os.Stderr, programName(), ExitFailure, format, args...))
}

// UsageExitf reports a configuration or flag error and exits with ExitUsage.
func UsageExitf(format string, args ...any) {
	os.Exit(reportFatal(os.Stderr, programName(), ExitUsage, format, args...))
}

// reportFatal writes "program: message" to w and returns code.
func reportFatal(w io.Writer, program string, code int, format string, args ...any) int {
	message := fmt.Sprintf(format, args...)
	if program == "" {
		fmt.Fprintln(w, message)
		return code
	}
	fmt.Fprintf(w, "%s: %s\n", program, message)
	return code
}

func programName() string {
	if len(os.Args) == 0 {
		return ""
	}
	return filepath.Base(os.Args[0])
}
