package observability

import (
	"context"
	"errors"
	"testing"
)

func TestStartSpanWithContext(t *testing.T) {
	tests := []struct {
		name     string
		spanName string
		data     map[string]any
	}{
		{
			name:     "span with nil data",
			spanName: "game.turn",
			data:     nil,
		},
		{
			name:     "span with empty data",
			spanName: "empty-span",
			data:     map[string]any{},
		},
		{
			name:     "span with mixed data types",
			spanName: "mixed-span",
			data: map[string]any{
				"game_id":   "abc",
				"player_id": 1,
				"latency":   3.14,
				"degraded":  true,
				"slice":     []string{"a", "b"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, span := StartSpanWithContext(context.Background(), tt.spanName, tt.data)
			if span == nil {
				t.Fatal("StartSpanWithContext returned nil span")
			}
			if ctx == nil {
				t.Fatal("StartSpanWithContext returned nil context")
			}
			if span.Name() != tt.spanName {
				t.Errorf("Name() = %q, want %q", span.Name(), tt.spanName)
			}
			if span.IsEnded() {
				t.Error("new span reports ended")
			}

			span.SetAttribute("extra", "value")
			span.SetError(errors.New("boom"))

			span.End()
			if !span.IsEnded() {
				t.Error("span not marked ended after End")
			}
			// End is idempotent
			span.End()
		})
	}
}

func TestInitDisabled(t *testing.T) {
	if err := Init(Config{ServiceName: "test", Enabled: false}); err != nil {
		t.Fatalf("Init with tracing disabled: %v", err)
	}
	if err := Init(Config{ServiceName: "test", Enabled: true, ExporterType: "none"}); err != nil {
		t.Fatalf("Init with none exporter: %v", err)
	}
	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestInitUnknownExporter(t *testing.T) {
	err := Init(Config{ServiceName: "test", Enabled: true, ExporterType: "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected error for unknown exporter type")
	}
}

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{"empty", "", nil},
		{"single", "a=1", map[string]string{"a": "1"}},
		{"multiple", "a=1,b=2", map[string]string{"a": "1", "b": "2"}},
		{"value with equals", "auth=Basic x=y", map[string]string{"auth": "Basic x=y"}},
		{"skips malformed", "a=1,nope,b=2", map[string]string{"a": "1", "b": "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseHeaders(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("parseHeaders(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("parseHeaders(%q)[%q] = %q, want %q", tt.input, k, got[k], v)
				}
			}
		})
	}
}
