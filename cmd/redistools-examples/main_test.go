package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-i2p/logger"

	"github.com/go-i2p/redistools/lib/config"
	"github.com/go-i2p/redistools/lib/store"
)

func newTestClient(t *testing.T) (*store.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	port, _ := strconv.Atoi(mr.Port())
	cfg := *config.DefaultConfig()
	cfg.Redis.Host = mr.Host()
	cfg.Redis.Port = port
	cfg.Pool.MaintenanceIntervalMillis = 0

	client, err := store.New(cfg)
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestMapDemo(t *testing.T) {
	client, mr := newTestClient(t)
	var out bytes.Buffer

	if err := runDemo(context.Background(), "map", client, &out, 0); err != nil {
		t.Fatalf("map demo failed: %v", err)
	}

	today := strconv.FormatInt(startOfDay(time.Now()).Unix(), 10)
	if got := mr.HGet("rs:0:test:map", "page:mailbox:views:"+today); got != "62" {
		t.Errorf("expected 62 mailbox views, got %q", got)
	}
	if !strings.Contains(out.String(), "key: key0, value: value0") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestQueueDemo(t *testing.T) {
	client, mr := newTestClient(t)
	var out bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runDemo(ctx, "queue", client, &out, 20); err != nil {
		t.Fatalf("queue demo failed: %v", err)
	}

	if n := strings.Count(out.String(), "Found: "); n != 20 {
		t.Errorf("expected 20 consumed items, got %d", n)
	}
	if !strings.HasPrefix(out.String(), "Found: 0\n") {
		t.Errorf("items should be consumed in order:\n%s", out.String())
	}
	if n, _ := mr.List("rs:0:test:bq"); len(n) != 0 {
		t.Errorf("queue should be empty after the demo, has %v", n)
	}
}

func TestMailboxDemo(t *testing.T) {
	client, _ := newTestClient(t)
	var out bytes.Buffer

	if err := runDemo(context.Background(), "mailbox", client, &out, 0); err != nil {
		t.Fatalf("mailbox demo failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"inbox: Conversations {",
		"Conversation: [id=7001, time=2024-03-01T11:00:00Z]",
		"(70010,2024/03/01)",
		"Conversation: [id=7002, time=2024-03-02T11:00:00Z]",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "id=7001") > strings.Index(got, "id=7002") {
		t.Error("conversations should be listed oldest first")
	}
}

func TestUnknownDemo(t *testing.T) {
	client, _ := newTestClient(t)
	if err := runDemo(context.Background(), "nope", client, &bytes.Buffer{}, 0); err == nil {
		t.Error("expected an error for an unknown demo")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"unknown": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLibraryLevel(t *testing.T) {
	tests := map[string]logger.Level{
		"debug": logger.DebugLevel,
		"Warn":  logger.WarnLevel,
		"error": logger.ErrorLevel,
		"info":  logger.InfoLevel,
		"":      logger.InfoLevel,
	}
	for in, want := range tests {
		if got := libraryLevel(in); got != want {
			t.Errorf("libraryLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfigureLibraryLogging(t *testing.T) {
	l := logger.GetGoI2PLogger()
	orig := l.GetLevel()
	t.Cleanup(func() {
		l.SetLevel(orig)
		l.SetOutput(io.Discard)
	})

	t.Setenv("DEBUG_I2P", "")
	configureLibraryLogging("debug")
	if got := l.GetLevel(); got != logger.DebugLevel {
		t.Errorf("library level = %v, want debug", got)
	}

	t.Setenv("DEBUG_I2P", "error")
	configureLibraryLogging("info")
	if got := l.GetLevel(); got != logger.DebugLevel {
		t.Errorf("DEBUG_I2P should leave the level alone, got %v", got)
	}
}
