package intent

import "sort"

// CorrelateValidIndices maps the model's validity verdicts back to global
// indices for the batch starting at startIndex with batchLen rows. Indices
// outside [startIndex, startIndex+batchLen) are dropped, duplicates keep
// their first occurrence, and the original relative order is preserved.
func CorrelateValidIndices(verdicts []ActionVerdict, startIndex, batchLen int) []int {
	var valid []int
	seen := make(map[int]struct{}, len(verdicts))
	for _, v := range verdicts {
		if !v.IsValid {
			continue
		}
		if v.Index < startIndex || v.Index >= startIndex+batchLen {
			continue
		}
		if _, dup := seen[v.Index]; dup {
			continue
		}
		seen[v.Index] = struct{}{}
		valid = append(valid, v.Index)
	}
	return valid
}

// CorrelateSegments maps model-declared segment claims back to concrete event
// segments for one batch. An index claimed by an earlier segment cannot be
// claimed again by a later one (first-claim-wins). Any in-range index left
// unclaimed after all segments are processed is swept, in index order, into
// the last segment, or into a new segment when the model produced none.
// The result therefore always covers the batch exactly.
func CorrelateSegments(claims []SegmentClaim, batch Batch) [][]Event {
	consumed := make(map[int]struct{})
	inRange := func(idx int) bool {
		return idx >= batch.StartIndex && idx < batch.StartIndex+len(batch.Events)
	}

	var segments [][]Event
	for _, claim := range claims {
		var indices []int
		for _, idx := range claim.BehaviorIndices {
			if !inRange(idx) {
				continue
			}
			if _, taken := consumed[idx]; taken {
				continue
			}
			consumed[idx] = struct{}{}
			indices = append(indices, idx)
		}
		if len(indices) == 0 {
			continue
		}
		seg := make([]Event, 0, len(indices))
		for _, idx := range indices {
			seg = append(seg, batch.Events[idx-batch.StartIndex])
		}
		segments = append(segments, seg)
	}

	var missing []int
	for idx := batch.StartIndex; idx < batch.StartIndex+len(batch.Events); idx++ {
		if _, taken := consumed[idx]; !taken {
			missing = append(missing, idx)
		}
	}
	if len(missing) > 0 {
		sort.Ints(missing)
		sweep := make([]Event, 0, len(missing))
		for _, idx := range missing {
			sweep = append(sweep, batch.Events[idx-batch.StartIndex])
		}
		if len(segments) > 0 {
			segments[len(segments)-1] = append(segments[len(segments)-1], sweep...)
		} else {
			segments = append(segments, sweep)
		}
	}
	return segments
}
