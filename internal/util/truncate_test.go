package util

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate_ShortString(t *testing.T) {
	if got := Truncate("short body", DefaultErrorBodyLen); got != "short body" {
		t.Errorf("Truncate() should not touch short strings, got %q", got)
	}
}

func TestTruncate_ExactLimit(t *testing.T) {
	input := "12345678901234567890"
	if got := Truncate(input, 20); got != input {
		t.Errorf("Truncate() should not truncate at exact limit, got %q", got)
	}
}

func TestTruncate_LongString(t *testing.T) {
	got := Truncate("1234567890abcdefghij", 10)
	if got != "1234567890... [truncated, 20 bytes total]" {
		t.Errorf("Truncate() = %q", got)
	}
}

func TestTruncate_CollapsesWhitespace(t *testing.T) {
	got := Truncate("{\n  \"message\":   \"bad\"\n}", 100)
	if got != `{ "message": "bad" }` {
		t.Errorf("Truncate() = %q", got)
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	input := strings.Repeat("é", 10) // 20 bytes
	got := Truncate(input, 5)
	prefix := got[:strings.Index(got, "...")]
	if !utf8.ValidString(prefix) {
		t.Fatalf("Truncate() split a rune: %q", got)
	}
	if prefix != "éé" {
		t.Fatalf("expected two whole runes, got %q", prefix)
	}
}

func TestTruncateBytes_LongBody(t *testing.T) {
	body := []byte(strings.Repeat("x", 2000))
	got := TruncateBytes(body)
	if !strings.HasPrefix(got, strings.Repeat("x", DefaultErrorBodyLen)+"...") {
		t.Errorf("TruncateBytes() should keep the first %d bytes", DefaultErrorBodyLen)
	}
	if !strings.Contains(got, "2000 bytes total") {
		t.Errorf("TruncateBytes() should report the original size, got %q", got)
	}
}
