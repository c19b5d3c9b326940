package intent

// MaxActionsPerBatch bounds how many actions a single model call may see.
const MaxActionsPerBatch = 50

// Batch is a contiguous slice of events carrying the offset of its first
// element in the enclosing action list. StartIndex + position is the stable
// global index used to correlate model output back to source rows.
type Batch struct {
	StartIndex int
	Events     []Event
}

// SplitBatches partitions events into batches of at most size elements.
// The slices cover the input exactly: no gaps, no overlaps, and the last
// batch may be short. size <= 0 falls back to MaxActionsPerBatch.
func SplitBatches(events []Event, size int) []Batch {
	if size <= 0 {
		size = MaxActionsPerBatch
	}
	if len(events) == 0 {
		return nil
	}
	batches := make([]Batch, 0, (len(events)+size-1)/size)
	for start := 0; start < len(events); start += size {
		end := start + size
		if end > len(events) {
			end = len(events)
		}
		batches = append(batches, Batch{StartIndex: start, Events: events[start:end]})
	}
	return batches
}
