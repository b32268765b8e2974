package logging

import (
	"bytes"
	"context"
	"encoding/json"
	stdlog "log"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInstall_RoutesStdlibAndGlobal(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.DefaultContextLogger = nil
	})

	var buf bytes.Buffer
	install(&buf, "info")

	stdlog.Printf("from stdlib")
	log.Debug().Msg("filtered out")
	log.Info().Str("k", "v").Msg("from zerolog")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("expected JSON line: %v", err)
	}
	if entry["message"] != "from zerolog" || entry["k"] != "v" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if !strings.Contains(lines[0], "from stdlib") {
		t.Fatalf("stdlib output not captured: %q", lines[0])
	}
}

func TestFromContext_TagsRequestID(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	ctx := WithRequestID(context.Background(), "abcd1234")
	FromContext(ctx).Info().Msg("hello")

	if !strings.Contains(buf.String(), `"request_id":"abcd1234"`) {
		t.Fatalf("expected request id in output, got %q", buf.String())
	}
}
