package intent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildFilterPromptSubstitutesPlaceholders(t *testing.T) {
	t.Parallel()
	batch := Batch{StartIndex: 50, Events: []Event{
		{EventName: "click_banner", EventTime: ts(t, "2024/03/01 10:00"), ExtraInfo: "new user gift"},
		{EventName: "show_homepage", EventTime: ts(t, "2024/03/01 10:01")},
	}}
	p := DefaultPrompts().BuildFilterPrompt(batch)

	if strings.Contains(p, "{{") {
		t.Fatalf("unsubstituted placeholder in prompt:\n%s", p)
	}
	if !strings.Contains(p, "total 2 behaviors") {
		t.Fatal("actions_count not rendered")
	}
	if !strings.Contains(p, "Index: 50, Event: click_banner") || !strings.Contains(p, "Index: 51, Event: show_homepage") {
		t.Fatal("global indices not rendered")
	}
	if !strings.Contains(p, "Extra Info: new user gift") {
		t.Fatal("extra info not rendered")
	}
	if strings.Contains(p, "Index: 51, Event: show_homepage, Time: 2024/03/01 10:01, Extra Info:") {
		t.Fatal("empty extra info must be omitted")
	}
}

func TestBuildAnalysisPromptUserContextAndHistory(t *testing.T) {
	t.Parallel()
	ue := UserEvents{UserID: "user-42", Events: []Event{
		{UserID: "user-42", EventName: "show_homepage", EventTime: ts(t, "2024/03/01 10:00")},
		{UserID: "user-42", EventName: "click_banner", EventTime: ts(t, "2024/03/01 10:05")},
	}}
	ctx := BuildUserContext(ue)
	if ctx.TotalActions != 2 || ctx.UniqueEvents != 2 {
		t.Fatalf("context counts = %d/%d, want 2/2", ctx.TotalActions, ctx.UniqueEvents)
	}
	if ctx.ApprovedTime != "N/A" {
		t.Fatalf("missing approval time should render N/A, got %q", ctx.ApprovedTime)
	}

	history := &AnalysisResult{IntentFinding: finding("prior intent"), Timestamp: "2024-03-01T09:00:00Z"}
	p := DefaultPrompts().BuildAnalysisPrompt(ctx, ue.Events, history, false)
	if !strings.Contains(p, "User ID: user-42") {
		t.Fatal("user id not rendered")
	}
	if !strings.Contains(p, "Previous intent: prior intent") {
		t.Fatal("history not rendered")
	}
	if strings.Contains(p, "operation recommendations to help") {
		t.Fatal("intent-only prompt must not request recommendations")
	}

	withRecs := DefaultPrompts().BuildAnalysisPrompt(ctx, ue.Events, nil, true)
	if !strings.Contains(withRecs, "Provide operation recommendations") {
		t.Fatal("with-recommendations prompt must request recommendations")
	}
}

func TestBuildRecommendationPrompt(t *testing.T) {
	t.Parallel()
	res := AnalysisResult{IntentFinding: finding("checking limit")}
	res.Concerns = []Concern{{ConcernType: "Limit", ConcernSeverity: "High", ConcernDescription: "limit too low"}}
	res.KeyBehaviors = []string{"show_limit_page"}

	p := DefaultPrompts().BuildRecommendationPrompt(res)
	if !strings.Contains(p, "Intent: checking limit") {
		t.Fatal("intent not rendered")
	}
	if !strings.Contains(p, "Limit (High): limit too low") {
		t.Fatal("concerns not rendered")
	}
	if strings.Contains(p, "{{") {
		t.Fatalf("unsubstituted placeholder:\n%s", p)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "filter.txt"), []byte("custom filter {{actions_text}}\n"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	prompts := DefaultPrompts()
	if err := prompts.LoadOverrides(dir); err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	if !strings.HasPrefix(prompts.Filter, "custom filter") {
		t.Fatalf("filter override not applied: %q", prompts.Filter[:30])
	}
	if prompts.Segmentation != defaultSegmentationPrompt {
		t.Fatal("segmentation prompt must keep its default")
	}
}
