package intent

// Model output payloads. Field names and shapes are part of the model
// contract: the provider reflects them into a response schema on the
// schema-constrained path, and the lenient decoder expects the same JSON keys
// on the free-text path.

// ActionVerdict is the model's validity call for one action, keyed by the
// global index echoed back from the prompt.
type ActionVerdict struct {
	Index   int    `json:"index" jsonschema:"description=Global index echoed from the input row"`
	IsValid bool   `json:"is_valid"`
	Reason  string `json:"reason" jsonschema:"description=Brief justification for the verdict"`
}

// ValidActionsFilterOutput is the validity-filter call payload.
type ValidActionsFilterOutput struct {
	ValidActions []ActionVerdict `json:"valid_actions"`
}

// SegmentClaim is one model-declared intent segment within a batch.
type SegmentClaim struct {
	SegmentIndex      int    `json:"segment_index" jsonschema:"description=Sequential number starting from 0"`
	StartIndex        int    `json:"start_index" jsonschema:"description=First behavior index in this segment (inclusive)"`
	EndIndex          int    `json:"end_index" jsonschema:"description=Last behavior index in this segment (inclusive)"`
	IntentDescription string `json:"intent_description"`
	BehaviorIndices   []int  `json:"behavior_indices" jsonschema:"description=All behavior indices in this segment"`
}

// IntentSegmentationOutput is the segmentation call payload.
type IntentSegmentationOutput struct {
	IntentSegments []SegmentClaim `json:"intent_segments"`
}

// Concern is one worry the model attributes to the user.
type Concern struct {
	ConcernType        string   `json:"concern_type" jsonschema:"description=Security / Credit / Limit / Fees / Usage / Difficulty / Other"`
	ConcernDescription string   `json:"concern_description"`
	ConcernSeverity    string   `json:"concern_severity" jsonschema:"description=High / Medium / Low"`
	Evidence           []string `json:"evidence"`
}

// PsychologicalReference contrasts what the user expected against what they
// actually perceived, and how the gap affects the first transaction.
type PsychologicalReference struct {
	ExpectedValue  string `json:"expected_value"`
	PerceivedValue string `json:"perceived_value"`
	GapAnalysis    string `json:"gap_analysis"`
}

// OperationRecommendation is the operational follow-up for one segment.
type OperationRecommendation struct {
	OnlineSolutions  []string `json:"online_solutions"`
	OfflineSolutions []string `json:"offline_solutions"`
	Priority         string   `json:"priority" jsonschema:"description=High / Medium / Low"`
	TargetedMessage  string   `json:"targeted_message"`
}

// IntentFinding is the semantic core of a per-segment analysis, shared by the
// intent-only, with-recommendation, and comprehensive payloads.
type IntentFinding struct {
	Intent                     string                 `json:"intent"`
	IntentCategory             string                 `json:"intent_category" jsonschema:"description=payment_intent / credit_limit_intent / installment_intent / voucher_intent / marketing_intent / exploration_intent"`
	ConfidenceScore            float64                `json:"confidence_score" jsonschema:"description=Between 0.0 and 1.0"`
	CertaintyLevel             string                 `json:"certainty_level" jsonschema:"description=Very High / High / Medium / Low"`
	EvidenceQuality            string                 `json:"evidence_quality" jsonschema:"description=Strong / Medium / Weak"`
	ExploredFeature            string                 `json:"explored_feature"`
	ExplorationPurpose         string                 `json:"exploration_purpose"`
	FirstTransactionConnection string                 `json:"first_transaction_connection"`
	BaselineTrust              float64                `json:"baseline_trust" jsonschema:"description=Between 0.0 and 1.0"`
	TrustIndicators            []string               `json:"trust_indicators"`
	Concerns                   []Concern              `json:"concerns"`
	PsychologicalReference     PsychologicalReference `json:"psychological_reference"`
	KeyBehaviors               []string               `json:"key_behaviors"`
	Reasoning                  string                 `json:"reasoning"`
	NextActionPrediction       string                 `json:"next_action_prediction"`
}

// IntentOnlyAnalysisOutput is the per-segment analysis payload without an
// operation recommendation.
type IntentOnlyAnalysisOutput struct {
	IntentFinding
}

// IntentAnalysisOutput is the per-segment analysis payload with the
// recommendation fused into the same call.
type IntentAnalysisOutput struct {
	IntentFinding
	OperationRecommendation OperationRecommendation `json:"operation_recommendation"`
}

// OperationRecommendationOutput is the standalone recommendation call payload
// used by the batch post-pass.
type OperationRecommendationOutput struct {
	OperationRecommendation OperationRecommendation `json:"operation_recommendation"`
}

// ComprehensiveSegment is one analyzed segment in the fused single-call
// variant: segmentation claim and analysis in one.
type ComprehensiveSegment struct {
	SegmentIndex       int   `json:"segment_index"`
	ValidActionIndices []int `json:"valid_action_indices"`
	IntentFinding
}

// ComprehensiveOutput is the fused filter+segment+analyze payload covering a
// whole time session in a single model call.
type ComprehensiveOutput struct {
	ValidActionIndices []int                  `json:"valid_action_indices"`
	IntentSegments     []ComprehensiveSegment `json:"intent_segments"`
}
