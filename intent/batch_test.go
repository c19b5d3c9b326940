package intent

import (
	"fmt"
	"testing"
)

func makeEvents(n int) []Event {
	events := make([]Event, n)
	for i := range events {
		events[i] = Event{UserID: "u1", EventName: fmt.Sprintf("ev_%d", i)}
	}
	return events
}

func TestSplitBatchesExactPartition(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		total     int
		size      int
		wantSizes []int
	}{
		{"empty", 0, 50, nil},
		{"single short batch", 7, 50, []int{7}},
		{"exact multiple", 100, 50, []int{50, 50}},
		{"last batch short", 120, 50, []int{50, 50, 20}},
		{"size one", 3, 1, []int{1, 1, 1}},
		{"zero size uses default", 60, 0, []int{50, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := SplitBatches(makeEvents(tt.total), tt.size)
			if len(batches) != len(tt.wantSizes) {
				t.Fatalf("got %d batches, want %d", len(batches), len(tt.wantSizes))
			}
			next := 0
			for i, b := range batches {
				if len(b.Events) != tt.wantSizes[i] {
					t.Fatalf("batch %d has %d events, want %d", i, len(b.Events), tt.wantSizes[i])
				}
				if b.StartIndex != next {
					t.Fatalf("batch %d starts at %d, want %d", i, b.StartIndex, next)
				}
				next += len(b.Events)
			}
			if next != tt.total {
				t.Fatalf("batches cover %d events, want %d", next, tt.total)
			}
		})
	}
}

func TestSplitBatchesGlobalIndexIsStable(t *testing.T) {
	t.Parallel()
	events := makeEvents(120)
	for _, b := range SplitBatches(events, 50) {
		for pos, ev := range b.Events {
			global := b.StartIndex + pos
			if events[global].EventName != ev.EventName {
				t.Fatalf("global index %d resolves to %q, want %q", global, events[global].EventName, ev.EventName)
			}
		}
	}
}
