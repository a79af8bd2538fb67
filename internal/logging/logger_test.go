package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cs2interlink/cs2-int/internal/events"
)

func TestShowError_LevelsAndHistory(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, nil)

	logger.ShowError(LevelLow, errors.New("timed out"))
	logger.ShowError(LevelHigh, errors.New(`Failed to retrieve "AK-47 | Redline"`), nil)

	out := buf.String()
	if !strings.Contains(out, "WRN") || !strings.Contains(out, "timed out") {
		t.Errorf("Expected low error logged at warn level, got %q", out)
	}
	if !strings.Contains(out, "ERR") || !strings.Contains(out, "Redline") {
		t.Errorf("Expected high error logged at error level, got %q", out)
	}

	entries := logger.Errors()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 history entries (nil skipped), got %d", len(entries))
	}
	if entries[0].Level != LevelHigh {
		t.Errorf("Expected newest entry first, got level %s", entries[0].Level)
	}
	if entries[1].Message != "timed out" {
		t.Errorf("Expected 'timed out', got %q", entries[1].Message)
	}
}

func TestShowError_PublishesEvent(t *testing.T) {
	bus := events.NewEventBus(4)
	defer bus.Close()
	ch := bus.Subscribe(events.EventError)

	logger := NewNopLogger()
	logger.SetEventBus(bus)
	logger.ShowError(LevelMedium, errors.New("Failed to open crate 1"))

	select {
	case ev := <-ch:
		errEv := ev.(*events.ErrorEvent)
		if errEv.Level != "Medium" {
			t.Errorf("Expected level Medium, got %s", errEv.Level)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for error event")
	}
}

func TestErrorHistory_Bounded(t *testing.T) {
	h := newErrorHistory(3)
	for i := 0; i < 5; i++ {
		h.add(ErrorEntry{Message: string(rune('a' + i))})
	}
	got := h.list()
	if len(got) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(got))
	}
	if got[0].Message != "e" || got[2].Message != "c" {
		t.Errorf("Unexpected history order: %+v", got)
	}
}

func TestEnableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cs2-int.log")
	logger := NewNopLogger()
	logger.EnableFile(path)
	logger.Info().Int("items", 12).Msg("Inventory loaded")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file, got %v", err)
	}
	if !strings.Contains(string(data), "Inventory loaded") {
		t.Errorf("Expected message in log file, got %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != zerolog.DebugLevel {
		t.Error("Expected debug level")
	}
	if ParseLevel("") != zerolog.InfoLevel {
		t.Error("Expected info for empty value")
	}
	if ParseLevel("loud") != zerolog.InfoLevel {
		t.Error("Expected info for unknown value")
	}
}
