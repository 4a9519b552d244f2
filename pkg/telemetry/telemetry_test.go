package telemetry

import (
	"context"
	"testing"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		exporter string
		wantErr  bool
	}{
		{name: "default", exporter: ""},
		{name: "none", exporter: "none"},
		{name: "console", exporter: "console"},
		{name: "unknown", exporter: "jaeger", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER", tt.exporter)

			tracer, shutdown, err := Setup(context.Background(), "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Setup() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tracer == nil {
				t.Fatal("Setup() returned nil tracer")
			}

			_, span := tracer.Start(context.Background(), "telemetry.test")
			span.End()

			if err := shutdown(context.Background()); err != nil {
				t.Errorf("shutdown() error = %v", err)
			}
		})
	}
}
