package otel_test

import (
	"context"
	"testing"

	"github.com/louisbranch/rebazzar/internal/platform/otel"
)

func TestEnvActive(t *testing.T) {
	tests := []struct {
		name string
		env  otel.Env
		want bool
	}{
		{name: "empty", env: otel.Env{}, want: false},
		{name: "endpoint", env: otel.Env{Endpoint: "http://localhost:4318"}, want: true},
		{name: "disabled", env: otel.Env{Endpoint: "http://localhost:4318", Enabled: "FALSE"}, want: false},
		{name: "blank endpoint", env: otel.Env{Endpoint: "  ", Enabled: "true"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.env.Active(); got != tt.want {
				t.Fatalf("Active() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("REBAZZAR_OTEL_ENDPOINT", "")
	t.Setenv("REBAZZAR_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("REBAZZAR_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("REBAZZAR_OTEL_ENABLED", "false")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address: nothing is exported because no spans are recorded.
	t.Setenv("REBAZZAR_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("REBAZZAR_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
