package intent

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clariondata/intentline/intent/provider"
)

// Mode selects the analysis strategy.
type Mode int

const (
	// ModeStaged runs the three-stage pipeline: filter valid actions, window
	// into time sessions, segment each session by intent, then analyze each
	// segment in order.
	ModeStaged Mode = iota
	// ModeSingleCall windows raw events into time sessions and runs one
	// fused filter+segment+analyze call per session.
	ModeSingleCall
)

// SmallSegmentThreshold is the session size at or below which segmentation
// is skipped and the whole session becomes one segment.
const SmallSegmentThreshold = 5

var (
	filterSchema         = provider.GenerateSchema[ValidActionsFilterOutput]()
	segmentationSchema   = provider.GenerateSchema[IntentSegmentationOutput]()
	intentOnlySchema     = provider.GenerateSchema[IntentOnlyAnalysisOutput]()
	intentWithRecsSchema = provider.GenerateSchema[IntentAnalysisOutput]()
	comprehensiveSchema  = provider.GenerateSchema[ComprehensiveOutput]()
	recommendationSchema = provider.GenerateSchema[OperationRecommendationOutput]()
)

// Analyzer drives per-user intent analysis against a model backend. A user
// analysis never fails outright: model errors degrade to fail-open defaults
// (filter keeps everything, segmentation yields one segment) or skip the
// affected segment, and everything else proceeds.
type Analyzer struct {
	Caller  provider.Caller
	Store   *Store
	Log     *zap.Logger
	Prompts Prompts

	Mode                Mode
	WithRecommendations bool
	// PlainText disables schema-constrained output, exercising the lenient
	// decoding path on every reply.
	PlainText bool

	SessionTimeout time.Duration
	BatchSize      int
	Concurrency    int
	// BatchPause is the delay between consecutive model calls within one
	// user, to keep request rates polite.
	BatchPause time.Duration

	now func() time.Time
}

func (a *Analyzer) log() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

func (a *Analyzer) prompts() Prompts {
	if a.Prompts == (Prompts{}) {
		return DefaultPrompts()
	}
	return a.Prompts
}

func (a *Analyzer) sessionTimeout() time.Duration {
	if a.SessionTimeout <= 0 {
		return DefaultSessionTimeout
	}
	return a.SessionTimeout
}

func (a *Analyzer) batchSize() int {
	if a.BatchSize <= 0 {
		return MaxActionsPerBatch
	}
	return a.BatchSize
}

func (a *Analyzer) concurrency() int {
	if a.Concurrency <= 0 {
		return 15
	}
	return a.Concurrency
}

func (a *Analyzer) timestamp() string {
	if a.now != nil {
		return a.now().Format(time.RFC3339)
	}
	return time.Now().Format(time.RFC3339)
}

func (a *Analyzer) pause(ctx context.Context) {
	if a.BatchPause <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(a.BatchPause):
	}
}

func (a *Analyzer) generate(ctx context.Context, prompt, schemaName string, schema map[string]interface{}) (provider.Reply, error) {
	req := provider.Request{Prompt: prompt, SchemaName: schemaName}
	if !a.PlainText {
		req.Schema = schema
	}
	return a.Caller.Generate(ctx, req)
}

// decodeReply parses a model reply into T. Structured replies are expected
// to parse directly; anything else goes through the lenient chain.
func decodeReply[T any](reply provider.Reply, expectKey string) (T, error) {
	if reply.Structured {
		var out T
		if err := json.Unmarshal([]byte(reply.Text), &out); err == nil {
			return out, nil
		}
	}
	return DecodeLenient[T](reply.Text, expectKey)
}

// AnalyzeAll runs every user through AnalyzeUser with bounded concurrency,
// persisting each user's result as soon as it completes. Users listed in
// skip (already present in the store, on resume) are not re-analyzed. A user
// interrupted by context cancellation is not persisted, so a later resume
// picks them up again. The first persistence error is returned after all
// workers finish.
func (a *Analyzer) AnalyzeAll(ctx context.Context, users []UserEvents, skip map[string]struct{}) error {
	sem := make(chan struct{}, a.concurrency())
	errCh := make(chan error, len(users))
	var wg sync.WaitGroup

	for _, ue := range users {
		if _, done := skip[ue.UserID]; done {
			a.log().Debug("skipping completed user", zap.String("user", ue.UserID))
			continue
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(ue UserEvents) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := a.AnalyzeUser(ctx, ue)
			// A shutdown mid-user leaves fail-open defaults in the result.
			// Persisting it would mark the user complete and resume would
			// never revisit them, so the partial result is discarded.
			if ctx.Err() != nil {
				a.log().Warn("analysis interrupted, discarding partial result",
					zap.String("user", ue.UserID))
				return
			}
			if a.Store != nil {
				if err := a.Store.UpsertUserResult(res); err != nil {
					errCh <- err
					return
				}
			}
			a.log().Info("user analyzed",
				zap.String("user", ue.UserID),
				zap.Int("segments", len(res.Sessions)),
				zap.Int("actions_valid", res.TotalActionsValid),
			)
		}(ue)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}

// AnalyzeUser produces the full result for one user's event history.
func (a *Analyzer) AnalyzeUser(ctx context.Context, ue UserEvents) UserResult {
	res := UserResult{
		UserID:               ue.UserID,
		TotalActionsOriginal: len(ue.Events),
	}
	if len(ue.Events) == 0 {
		return res
	}

	uc := BuildUserContext(ue)
	if a.Mode == ModeSingleCall {
		a.analyzeSingleCall(ctx, uc, ue, &res)
	} else {
		a.analyzeStaged(ctx, uc, ue, &res)
	}
	res.TotalSessions = len(res.Sessions)
	return res
}

func (a *Analyzer) analyzeStaged(ctx context.Context, uc UserContext, ue UserEvents, res *UserResult) {
	valid := a.filterEvents(ctx, ue)
	res.TotalActionsValid = len(valid)
	if len(valid) == 0 {
		return
	}

	var history *AnalysisResult
	for _, sess := range WindowSessions(valid, a.sessionTimeout()) {
		for _, segEvents := range a.segmentSession(ctx, ue.UserID, sess) {
			finding, rec, err := a.analyzeSegment(ctx, uc, segEvents, history)
			if err != nil {
				a.log().Warn("segment analysis failed, skipping segment",
					zap.String("user", ue.UserID),
					zap.Int("segment_size", len(segEvents)),
					zap.Error(err),
				)
				continue
			}
			res.Sessions = append(res.Sessions, AnalysisResult{
				IntentFinding:           finding,
				OperationRecommendation: rec,
				SegmentIndex:            len(res.Sessions),
				SegmentSize:             len(segEvents),
				Timestamp:               a.timestamp(),
			})
			history = &res.Sessions[len(res.Sessions)-1]
			res.TotalActionsAnalyzed += len(segEvents)
		}
	}
}

// filterEvents runs the validity filter over batches of the user's raw
// events. A batch whose reply cannot be decoded or salvaged is kept whole:
// losing the filter must never lose data.
func (a *Analyzer) filterEvents(ctx context.Context, ue UserEvents) []Event {
	batches := SplitBatches(ue.Events, a.batchSize())
	var valid []Event
	for bi, batch := range batches {
		if bi > 0 {
			a.pause(ctx)
		}

		reply, err := a.generate(ctx, a.prompts().BuildFilterPrompt(batch), "ValidActionsFilter", filterSchema)
		if err != nil {
			a.log().Warn("filter call failed, keeping whole batch",
				zap.String("user", ue.UserID),
				zap.Int("batch_start", batch.StartIndex),
				zap.Error(err),
			)
			valid = append(valid, batch.Events...)
			continue
		}

		verdicts := []ActionVerdict(nil)
		out, derr := decodeReply[ValidActionsFilterOutput](reply, "valid_actions")
		if derr == nil {
			verdicts = out.ValidActions
		} else {
			verdicts = ExtractFilterVerdicts(reply.Text)
		}
		if len(verdicts) == 0 {
			a.log().Warn("filter reply unusable, keeping whole batch",
				zap.String("user", ue.UserID),
				zap.Int("batch_start", batch.StartIndex),
				zap.NamedError("decode_error", derr),
			)
			valid = append(valid, batch.Events...)
			continue
		}

		for _, idx := range CorrelateValidIndices(verdicts, batch.StartIndex, len(batch.Events)) {
			valid = append(valid, batch.Events[idx-batch.StartIndex])
		}
	}
	return valid
}

// segmentSession splits one time session into intent segments. Sessions at
// or below the small-segment threshold skip the model entirely. A batch
// whose reply cannot be decoded or salvaged becomes a single segment.
func (a *Analyzer) segmentSession(ctx context.Context, userID string, sess TimeSession) [][]Event {
	if len(sess.Events) <= SmallSegmentThreshold {
		return [][]Event{sess.Events}
	}

	var segments [][]Event
	for bi, batch := range SplitBatches(sess.Events, a.batchSize()) {
		if bi > 0 {
			a.pause(ctx)
		}

		claims, err := a.segmentBatch(ctx, batch)
		if err != nil {
			a.log().Warn("segmentation failed, using single segment for batch",
				zap.String("user", userID),
				zap.Int("batch_start", batch.StartIndex),
				zap.Error(err),
			)
			segments = append(segments, batch.Events)
			continue
		}
		segments = append(segments, CorrelateSegments(claims, batch)...)
	}
	return segments
}

func (a *Analyzer) segmentBatch(ctx context.Context, batch Batch) ([]SegmentClaim, error) {
	reply, err := a.generate(ctx, a.prompts().BuildSegmentationPrompt(batch), "IntentSegmentation", segmentationSchema)
	if err != nil {
		return nil, err
	}
	out, derr := decodeReply[IntentSegmentationOutput](reply, "intent_segments")
	if derr == nil && len(out.IntentSegments) > 0 {
		return out.IntentSegments, nil
	}
	lists := ExtractSegmentIndexLists(reply.Text)
	if len(lists) == 0 {
		return nil, derr
	}
	claims := make([]SegmentClaim, 0, len(lists))
	for i, indices := range lists {
		claims = append(claims, SegmentClaim{SegmentIndex: i, BehaviorIndices: indices})
	}
	return claims, nil
}

func (a *Analyzer) analyzeSegment(ctx context.Context, uc UserContext, events []Event, history *AnalysisResult) (IntentFinding, *OperationRecommendation, error) {
	a.pause(ctx)
	prompt := a.prompts().BuildAnalysisPrompt(uc, events, history, a.WithRecommendations)

	if a.WithRecommendations {
		reply, err := a.generate(ctx, prompt, "IntentAnalysis", intentWithRecsSchema)
		if err != nil {
			return IntentFinding{}, nil, err
		}
		out, err := decodeReply[IntentAnalysisOutput](reply, "")
		if err != nil {
			return IntentFinding{}, nil, err
		}
		rec := out.OperationRecommendation
		return out.IntentFinding, &rec, nil
	}

	reply, err := a.generate(ctx, prompt, "IntentOnlyAnalysis", intentOnlySchema)
	if err != nil {
		return IntentFinding{}, nil, err
	}
	out, err := decodeReply[IntentOnlyAnalysisOutput](reply, "")
	if err != nil {
		return IntentFinding{}, nil, err
	}
	return out.IntentFinding, nil, nil
}

// analyzeSingleCall windows the raw events and runs one fused call per time
// session. The model filters, segments, and analyzes in a single reply.
func (a *Analyzer) analyzeSingleCall(ctx context.Context, uc UserContext, ue UserEvents, res *UserResult) {
	var history *AnalysisResult
	start := 0
	for si, sess := range WindowSessions(ue.Events, a.sessionTimeout()) {
		if si > 0 {
			a.pause(ctx)
		}
		batch := Batch{StartIndex: start, Events: sess.Events}
		start += len(sess.Events)

		out, err := a.comprehensiveCall(ctx, uc, batch, history)
		if err != nil {
			a.log().Warn("comprehensive analysis failed, skipping session",
				zap.String("user", ue.UserID),
				zap.Int("session_size", len(sess.Events)),
				zap.Error(err),
			)
			continue
		}

		res.TotalActionsValid += len(CorrelateValidIndices(asVerdicts(out.ValidActionIndices), batch.StartIndex, len(batch.Events)))
		for _, seg := range out.IntentSegments {
			size := len(seg.ValidActionIndices)
			if size == 0 {
				continue
			}
			res.Sessions = append(res.Sessions, AnalysisResult{
				IntentFinding: seg.IntentFinding,
				SegmentIndex:  len(res.Sessions),
				SegmentSize:   size,
				Timestamp:     a.timestamp(),
			})
			history = &res.Sessions[len(res.Sessions)-1]
			res.TotalActionsAnalyzed += size
		}
	}
}

func (a *Analyzer) comprehensiveCall(ctx context.Context, uc UserContext, batch Batch, history *AnalysisResult) (ComprehensiveOutput, error) {
	prompt := a.prompts().BuildComprehensivePrompt(uc, batch, history)
	reply, err := a.generate(ctx, prompt, "ComprehensiveIntentAnalysis", comprehensiveSchema)
	if err != nil {
		return ComprehensiveOutput{}, err
	}
	return decodeReply[ComprehensiveOutput](reply, "intent_segments")
}

func asVerdicts(indices []int) []ActionVerdict {
	verdicts := make([]ActionVerdict, 0, len(indices))
	for _, idx := range indices {
		verdicts = append(verdicts, ActionVerdict{Index: idx, IsValid: true})
	}
	return verdicts
}

// NewRunID returns a fresh identifier for one pipeline invocation, used to
// tag log lines across workers.
func NewRunID() string {
	return uuid.NewString()
}
