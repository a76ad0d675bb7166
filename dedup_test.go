package eventtracker

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestDedupConfig_WithDefaults(t *testing.T) {
	cfg := DedupConfig{}.withDefaults()

	if cfg.Window != 10*time.Minute {
		t.Errorf("Window = %v, want 10m", cfg.Window)
	}
	if cfg.Capacity != 100_000 {
		t.Errorf("Capacity = %d, want 100000", cfg.Capacity)
	}
	if cfg.FPRate != 0.0001 {
		t.Errorf("FPRate = %v, want 0.0001", cfg.FPRate)
	}
}

func TestDedupConfig_WithDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := DedupConfig{Window: time.Minute, Capacity: 10, FPRate: 0.01}.withDefaults()

	if cfg.Window != time.Minute {
		t.Errorf("Window = %v, want 1m", cfg.Window)
	}
	if cfg.Capacity != 10 {
		t.Errorf("Capacity = %d, want 10", cfg.Capacity)
	}
	if cfg.FPRate != 0.01 {
		t.Errorf("FPRate = %v, want 0.01", cfg.FPRate)
	}
}

func TestDedupGate_DetectsDuplicateWithinWindow(t *testing.T) {
	gate := newDedupGate(DedupConfig{Window: time.Minute, Capacity: 1000, FPRate: 0.001}, nil, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate.start(ctx)
	defer gate.stop()

	key := dedupKey("clicks", `{"x":1}`)

	if gate.isDuplicate(key) {
		t.Fatal("first occurrence should not be a duplicate")
	}
	if !gate.isDuplicate(key) {
		t.Fatal("second occurrence of the same key should be a duplicate")
	}
}

func TestDedupGate_DifferentStreamsDoNotCollide(t *testing.T) {
	gate := newDedupGate(DedupConfig{Window: time.Minute, Capacity: 1000, FPRate: 0.001}, nil, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate.start(ctx)
	defer gate.stop()

	if gate.isDuplicate(dedupKey("clicks", `{"x":1}`)) {
		t.Fatal("first occurrence on stream clicks should not be a duplicate")
	}
	if gate.isDuplicate(dedupKey("views", `{"x":1}`)) {
		t.Fatal("same payload on a different stream should not be a duplicate")
	}
}
