package config

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func TestReportFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		program string
		code    int
		want    string
	}{
		{name: "runtime failure", program: "marketplace", code: ExitFailure, want: "marketplace: failed to serve: listen tcp: address in use\n"},
		{name: "usage", program: "session-key", code: ExitUsage, want: "session-key: failed to serve: listen tcp: address in use\n"},
		{name: "no program name", code: ExitFailure, want: "failed to serve: listen tcp: address in use\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			code := reportFatal(&buf, tc.program, tc.code, "failed to serve: %v", errors.New("listen tcp: address in use"))
			if code != tc.code {
				t.Fatalf("code = %d, want %d", code, tc.code)
			}
			if buf.String() != tc.want {
				t.Fatalf("output = %q, want %q", buf.String(), tc.want)
			}
		})
	}
}

// Exit paths run in a subprocess because os.Exit cannot be intercepted.
func TestExitf_ExitCodes(t *testing.T) {
	switch os.Getenv("REBAZZAR_EXIT_SUBPROCESS") {
	case "failure":
		Exitf("generate key: %s", "entropy unavailable")
		return
	case "usage":
		UsageExitf("parse flags: %s", "unknown storage")
		return
	}

	tests := []struct {
		mode     string
		wantCode int
		wantOut  string
	}{
		{mode: "failure", wantCode: ExitFailure, wantOut: ": generate key: entropy unavailable"},
		{mode: "usage", wantCode: ExitUsage, wantOut: ": parse flags: unknown storage"},
	}
	for _, tc := range tests {
		cmd := exec.Command(os.Args[0], "-test.run=^TestExitf_ExitCodes$")
		cmd.Env = append(os.Environ(), "REBAZZAR_EXIT_SUBPROCESS="+tc.mode)
		out, err := cmd.CombinedOutput()

		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("%s: expected *exec.ExitError, got %T: %v", tc.mode, err, err)
		}
		if exitErr.ExitCode() != tc.wantCode {
			t.Fatalf("%s: exit code = %d, want %d", tc.mode, exitErr.ExitCode(), tc.wantCode)
		}
		if !strings.Contains(string(out), tc.wantOut) {
			t.Fatalf("%s: output %q missing %q", tc.mode, out, tc.wantOut)
		}
	}
}
