package helpers

import (
	"context"
	"testing"
)

func TestCountSend(t *testing.T) {
	CountSend(context.Background(), true)

	ctx, c := WithCounters(context.Background())
	CountSend(ctx, false)
	CountSend(ctx, true)
	CountSend(ctx, false)

	msgs, kb := CountersFrom(ctx).Snapshot()
	if msgs != 3 || !kb {
		t.Fatalf("snapshot = (%d, %v), want (3, true)", msgs, kb)
	}
	if CountersFrom(ctx) != c {
		t.Fatal("expected the attached counters")
	}
	if msgs, kb := (*Counters)(nil).Snapshot(); msgs != 0 || kb {
		t.Fatal("nil counters must report zero")
	}
}
