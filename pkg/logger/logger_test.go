package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	ctx := logg.WithStoreID(context.Background(), "store-1")
	ctx = logg.WithPlatform(ctx, "shopee")
	logg.Info(ctx, "sync started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output not json: %v (%s)", err, buf.String())
	}
	if entry["store_id"] != "store-1" {
		t.Fatalf("store_id missing: %v", entry)
	}
	if entry["platform"] != "shopee" {
		t.Fatalf("platform missing: %v", entry)
	}
	if entry["service"] != "test" {
		t.Fatalf("service missing: %v", entry)
	}
}

func TestErrorIncludesStack(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	logg.Error(context.Background(), "boom", errors.New("broken pipe"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output not json: %v", err)
	}
	if entry["stack"] == nil || entry["stack"] == "" {
		t.Fatal("expected stack field on error logs")
	}
	if entry["error"] != "broken pipe" {
		t.Fatalf("error field = %v", entry["error"])
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != zerolog.DebugLevel {
		t.Fatal("DEBUG should parse case-insensitively")
	}
	if ParseLevel("") != zerolog.InfoLevel {
		t.Fatal("empty level should default to info")
	}
	if ParseLevel("nope") != zerolog.InfoLevel {
		t.Fatal("unknown level should default to info")
	}
}
