package intent

// AnalysisResult is the terminal artifact for one intent segment. Produced
// once and persisted; the only later mutation is attaching an operation
// recommendation in the batch post-pass.
type AnalysisResult struct {
	IntentFinding
	OperationRecommendation *OperationRecommendation `json:"operation_recommendation,omitempty"`

	// The "session_*" JSON names predate the segment terminology and are
	// kept so existing result documents stay readable.
	SegmentIndex int    `json:"session_index"`
	SegmentSize  int    `json:"session_size"`
	Timestamp    string `json:"timestamp"`
}

// UserResult aggregates one user's analyzed segments. Persisted as a unit,
// keyed by user ID in the result document.
type UserResult struct {
	UserID               string           `json:"user_uuid"`
	TotalSessions        int              `json:"total_sessions"`
	TotalActionsOriginal int              `json:"total_actions_original"`
	TotalActionsValid    int              `json:"total_actions_valid"`
	TotalActionsAnalyzed int              `json:"total_actions_analyzed"`
	Sessions             []AnalysisResult `json:"sessions"`
}

// ResultDocument maps user IDs to their aggregated results. It is the on-disk
// persistence format.
type ResultDocument map[string]UserResult
