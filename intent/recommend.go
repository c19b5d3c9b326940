package intent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/clariondata/intentline/intent/provider"
)

// Recommender back-fills operation recommendations onto an existing result
// document. Segments that already carry a recommendation are left alone, so
// the pass is idempotent and resumable.
type Recommender struct {
	Caller  provider.Caller
	Store   *Store
	Log     *zap.Logger
	Prompts Prompts

	PlainText bool
	// Pause is the delay between consecutive model calls.
	Pause time.Duration
}

func (r *Recommender) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Recommender) prompts() Prompts {
	if r.Prompts == (Prompts{}) {
		return DefaultPrompts()
	}
	return r.Prompts
}

func (r *Recommender) pause(ctx context.Context) {
	pause := r.Pause
	if pause <= 0 {
		pause = 200 * time.Millisecond
	}
	select {
	case <-ctx.Done():
	case <-time.After(pause):
	}
}

// Run generates recommendations for every segment that lacks one, persisting
// after each user so an interrupted pass loses at most one user's work. It
// returns the number of recommendations generated.
func (r *Recommender) Run(ctx context.Context) (int, error) {
	doc, err := r.Store.Load()
	if err != nil {
		return 0, err
	}

	generated := 0
	for _, userID := range SortedUserIDs(doc) {
		if ctx.Err() != nil {
			return generated, ctx.Err()
		}

		user := doc[userID]
		recs := make(map[int]OperationRecommendation)
		for i, sess := range user.Sessions {
			if sess.OperationRecommendation != nil {
				continue
			}
			if generated > 0 || len(recs) > 0 {
				r.pause(ctx)
			}
			rec, err := r.recommend(ctx, sess)
			if err != nil {
				r.log().Warn("recommendation failed, leaving segment without one",
					zap.String("user", userID),
					zap.Int("segment", sess.SegmentIndex),
					zap.Error(err),
				)
				continue
			}
			recs[i] = rec
		}
		if len(recs) == 0 {
			continue
		}

		err := r.Store.Update(func(doc ResultDocument) error {
			user, ok := doc[userID]
			if !ok {
				return nil
			}
			for i, rec := range recs {
				if i < len(user.Sessions) && user.Sessions[i].OperationRecommendation == nil {
					rec := rec
					user.Sessions[i].OperationRecommendation = &rec
				}
			}
			doc[userID] = user
			return nil
		})
		if err != nil {
			return generated, err
		}
		generated += len(recs)
		r.log().Info("recommendations persisted",
			zap.String("user", userID),
			zap.Int("count", len(recs)),
		)
	}
	return generated, nil
}

func (r *Recommender) recommend(ctx context.Context, res AnalysisResult) (OperationRecommendation, error) {
	req := provider.Request{
		Prompt:     r.prompts().BuildRecommendationPrompt(res),
		SchemaName: "OperationRecommendation",
	}
	if !r.PlainText {
		req.Schema = recommendationSchema
	}
	reply, err := r.Caller.Generate(ctx, req)
	if err != nil {
		return OperationRecommendation{}, err
	}
	out, err := decodeReply[OperationRecommendationOutput](reply, "")
	if err != nil {
		return OperationRecommendation{}, err
	}
	return out.OperationRecommendation, nil
}
