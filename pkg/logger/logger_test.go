package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestErrorCarriesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "billing-test", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithUserID(ctx, "user-abc")

	log.Error(ctx, "charge failed", errors.New("boom"))

	entry := buf.String()
	for _, want := range []string{"\"request_id\"", "\"user_id\"", "charge failed"} {
		if !bytes.Contains([]byte(entry), []byte(want)) {
			t.Fatalf("expected %s in log entry; entry=%s", want, entry)
		}
	}
}

func TestWithFieldsAccumulate(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "billing-test", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithFields(context.Background(), map[string]any{
		"invoice_id": "inv-1",
	})
	ctx = log.WithField(ctx, "attempt_id", "att-1")
	log.Info(ctx, "invoice settled")

	entry := buf.String()
	if !bytes.Contains([]byte(entry), []byte("\"invoice_id\"")) {
		t.Fatalf("expected invoice_id field; entry=%s", entry)
	}
	if !bytes.Contains([]byte(entry), []byte("\"attempt_id\"")) {
		t.Fatalf("expected attempt_id field; entry=%s", entry)
	}
}

func TestParseLevelFallsBack(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("blank level should fall back to info, got %v", lvl)
	}
	if lvl := ParseLevel("shouty"); lvl != zerolog.InfoLevel {
		t.Fatalf("unknown level should fall back to info, got %v", lvl)
	}
	if lvl := ParseLevel("warn"); lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %v", lvl)
	}
}
