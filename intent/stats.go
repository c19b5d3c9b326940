package intent

import "sort"

// Aggregations over a result document, served by the viewer API.

type CategoryCount struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Share    float64 `json:"share"`
}

type ScoreStats struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

type SizeStats struct {
	Average float64 `json:"average"`
	Min     int     `json:"min"`
	Max     int     `json:"max"`
}

type Stats struct {
	TotalUsers         int             `json:"total_users"`
	TotalSegments      int             `json:"total_segments"`
	AvgSegmentsPerUser float64         `json:"avg_segments_per_user"`
	Categories         []CategoryCount `json:"categories"`
	Confidence         ScoreStats      `json:"confidence"`
	SegmentSizes       SizeStats       `json:"segment_sizes"`
}

// ComputeStats aggregates category distribution, confidence spread, and
// segment sizes across every user in the document.
func ComputeStats(doc ResultDocument) Stats {
	stats := Stats{TotalUsers: len(doc)}

	categoryCounts := make(map[string]int)
	first := true
	for _, user := range doc {
		for _, sess := range user.Sessions {
			stats.TotalSegments++

			cat := sess.IntentCategory
			if cat == "" {
				cat = "Unknown"
			}
			categoryCounts[cat]++

			score := sess.ConfidenceScore
			size := sess.SegmentSize
			if first {
				stats.Confidence = ScoreStats{Average: 0, Min: score, Max: score}
				stats.SegmentSizes = SizeStats{Min: size, Max: size}
				first = false
			}
			if score < stats.Confidence.Min {
				stats.Confidence.Min = score
			}
			if score > stats.Confidence.Max {
				stats.Confidence.Max = score
			}
			if size < stats.SegmentSizes.Min {
				stats.SegmentSizes.Min = size
			}
			if size > stats.SegmentSizes.Max {
				stats.SegmentSizes.Max = size
			}
			stats.Confidence.Average += score
			stats.SegmentSizes.Average += float64(size)
		}
	}

	if stats.TotalSegments > 0 {
		stats.Confidence.Average /= float64(stats.TotalSegments)
		stats.SegmentSizes.Average /= float64(stats.TotalSegments)
	}
	if stats.TotalUsers > 0 {
		stats.AvgSegmentsPerUser = float64(stats.TotalSegments) / float64(stats.TotalUsers)
	}

	for cat, count := range categoryCounts {
		share := 0.0
		if stats.TotalSegments > 0 {
			share = float64(count) / float64(stats.TotalSegments)
		}
		stats.Categories = append(stats.Categories, CategoryCount{Category: cat, Count: count, Share: share})
	}
	sort.Slice(stats.Categories, func(i, j int) bool {
		if stats.Categories[i].Count != stats.Categories[j].Count {
			return stats.Categories[i].Count > stats.Categories[j].Count
		}
		return stats.Categories[i].Category < stats.Categories[j].Category
	})
	return stats
}

type SegmentAuditEntry struct {
	SegmentIndex int `json:"segment_index"`
	SegmentSize  int `json:"segment_size"`
	KeyBehaviors int `json:"key_behaviors"`
}

// SegmentAudit cross-checks one user's per-segment sizes against the totals
// recorded for them.
type SegmentAudit struct {
	UserID         string              `json:"user_uuid"`
	TotalSessions  int                 `json:"total_sessions"`
	TotalBehaviors int                 `json:"total_behaviors"`
	Segments       []SegmentAuditEntry `json:"segments"`
}

// AuditUser reports per-segment behavior counts for one user. The second
// return value is false when the user is not in the document.
func AuditUser(doc ResultDocument, userID string) (SegmentAudit, bool) {
	user, ok := doc[userID]
	if !ok {
		return SegmentAudit{}, false
	}
	audit := SegmentAudit{
		UserID:        userID,
		TotalSessions: user.TotalSessions,
		Segments:      make([]SegmentAuditEntry, 0, len(user.Sessions)),
	}
	for _, sess := range user.Sessions {
		audit.TotalBehaviors += sess.SegmentSize
		audit.Segments = append(audit.Segments, SegmentAuditEntry{
			SegmentIndex: sess.SegmentIndex,
			SegmentSize:  sess.SegmentSize,
			KeyBehaviors: len(sess.KeyBehaviors),
		})
	}
	return audit, true
}
