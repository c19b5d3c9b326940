package intent

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/clariondata/intentline/intent/fileutils"
)

// Prompt templates. Each template names its placeholders in {{name}} form;
// the Build* methods substitute them. Any template can be overridden from a
// file so prompt tuning doesn't require a rebuild.

const defaultFilterPrompt = `You are a user behavior analysis expert in the consumer credit industry. Analyze the following user behavior data and determine which behaviors are "valid", i.e. meaningful for analyzing user intent.

## Definition of Valid Behaviors

Valid behaviors should:
1. Reflect the user's true intent: active operations or content the user focuses on
2. Have value for intent analysis: help understand what the user wants to do
3. Have business significance: relate to financial products, services, or features

## Characteristics of Invalid Behaviors

The following are usually invalid:
1. System-level events: app start/stop, background running, and similar events that do not reflect intent
2. Pure technical events: page loading, resource loading, other low-level events
3. Repeated invalid displays: the same content shown repeatedly in a short time without user interaction
4. Error or exception events: system errors, network errors

## Judgment Criteria

For each behavior consider:
- Event name: whether it reflects an active operation (click_xxx is usually valid, show_xxx needs context)
- Time pattern: whether it falls within a reasonable time range
- Context: its relationship with surrounding behaviors, whether it forms a meaningful sequence
- Business value: whether it helps understand user intent

## Input Data

User behavior list (total {{actions_count}} behaviors):
{{actions_text}}

## Your Task

Analyze each behavior and determine whether it is "valid" (meaningful for analyzing user intent). For every behavior return its index exactly as given in the input.

Please start the analysis.`

const defaultSegmentationPrompt = `You are a user behavior analysis expert in the consumer credit industry. Analyze the following user behaviors and segment them into different intent phases based on intent consistency.

## Task Description

Analyze the behavior sequence and identify when the user's intent changes. Segment behaviors into phases where each phase represents one consistent intent.

## Intent Consistency Criteria

Behaviors belong in the same phase when they:
1. Share the same primary intent: all behaviors serve the same goal (all related to payment, all related to credit limit checking, all related to voucher usage)
2. Form a coherent sequence: behaviors flow logically toward the same objective
3. Show continuous focus: no significant shift in the user's attention or goal

## Intent Change Indicators

Start a new phase when:
1. Clear intent shift: the user switches from one goal to another (from browsing vouchers to checking credit limit)
2. Different product focus: behaviors shift to a different financial product or service
3. Significant context change: the user moves between functional areas (from payment flow to membership page)
4. Time gap combined with a different behavior pattern

## Segmentation Rules

- Each segment should contain at least 2-3 behaviors unless it is a clear isolated intent
- Consider behavior context and sequence, not just event names
- A segment should represent a complete intent phase, not a single action
- behavior_indices must use the index values exactly as given in the input, and every input index must be assigned

## Input Data

User behavior list (total {{actions_count}} behaviors):
{{actions_text}}

## Your Task

Segment the behavior sequence into intent phases. Each phase represents behaviors with consistent intent.`

const intentAnalysisCore = `You are a user behavior analysis expert in the consumer credit industry. Synthesize all input sources to extract the user's intent.

## Data Sources (use all of them)

1. User info: user ID, approval time, first payment time, to place the user in their lifecycle stage
2. Behavior sequence: time-ordered events, to see what the user actually did
3. Behavior context: event type, time gaps, extra info, to judge depth and pattern
4. Prior intent: the previous analysis result when present, to track how intent evolves

## Event Types (active response vs passive display)

Only the user's active responses reflect true intent:

1. show_* exposure events: the app displayed something. A show by itself carries no meaning; the user may not have noticed it at all. Extremely low weight, context only.
2. click_* events: the user's active response to what was shown. Core evidence for intent. A show followed by a click is a complete intent expression: what was displayed plus what the user chose.
3. on_app_stop: the user killed the app. A deliberate response. Always trace back to the most recent show events before the stop: what did the user see right before quitting? A show immediately followed by a stop strongly suggests disinterest or confusion; show then click then stop often means a completed operation and a normal exit.

Core logic: note what was shown, then how the user responded (click or stop). Shows without any response cannot establish intent.

## Extra Info

Voucher and popup events carry cleaned detail in the extra_info field: payment methods (virtual account, QR), voucher types (cashback, discount, newcomer), popup categories (activation gift, retention task, marketing campaign). Use extra_info to pin down exactly what the user was looking at.

## Signal Weights

High: click_* operations, popup primary-button clicks, payment submit clicks.
Medium: on_app_stop, interpreted against the preceding show sequence.
Very low: isolated show_* events.

## Sequence Analysis

Order matters. First-to-last shows interest evolution; returning to an earlier behavior signals strong interest or comparison; time spent between behaviors shows where attention went. For any on_app_stop, identify the content seen immediately before it and infer what the stop was a response to.

## Intent Categories

For every intent, state the specific product feature being explored, the purpose of the exploration, and how the intent connects to completing a first transaction.

1. payment_intent: virtual account, QR payment, top-up, e-commerce checkout
2. credit_limit_intent: available limit, temporary limit raise, cash loan limit
3. installment_intent: installment options, plan details, cost calculation
4. voucher_intent: voucher browsing and usage, membership benefits, newcomer perks
5. marketing_intent: activation gifts, time-limited campaigns, task rewards
6. exploration_intent: browsing features without commitment; name the specific feature explored

## Prior Intent

When a prior analysis exists, build on it: confirm continuity or highlight what changed and why it matters. Always produce a complete analysis regardless.

## Your Task

1. Analyze the user's intent by cross-referencing user lifecycle, behavior order, and event semantics. Name the explored feature, the exploration purpose, and the first-transaction connection. Every claim must cite specific evidence from the input.
2. Assess psychological state: baseline_trust between 0.0 and 1.0 (high 0.7-1.0 fast activation and confident use, medium 0.4-0.7 cautious exploration, low 0.0-0.4 repeated verification and hesitation); concerns (security, limit, fees, usability) each with severity and behavioral evidence; the gap between what the user expected and what they perceived, and how that gap affects the first-transaction decision.
3. Score the intent: confidence_score between 0.0 and 1.0 (0.9+ clear conversion behavior, 0.7-0.9 strong interest signals, 0.5-0.7 moderate, 0.3-0.5 mostly browsing, below 0.3 unclear); certainty_level one of Very High, High, Medium, Low; evidence_quality one of Strong, Medium, Weak.`

const intentAnalysisRecommendationTask = `
4. Provide operation recommendations to help the user complete a first transaction: online solutions (in-app push, reminders, voucher grants, feature guidance) and offline solutions (callback, SMS, email, account manager contact). Recommendations must be specific and actionable against the user's current intent, trust level, and concerns.`

const intentAnalysisInput = `

## Input Data

User info:
- User ID: {{user_uuid}}
- Approval time: {{approved_time}}
- First payment time: {{first_payment_time}}
- First action time: {{first_action_time}}
- Last action time: {{last_action_time}}
- Total actions: {{total_actions}}
- Unique event types: {{unique_events}}

User behavior sequence:
{{actions_text}}

{{history_text}}`

const defaultIntentOnlyPrompt = intentAnalysisCore + intentAnalysisInput + `
Begin the intent analysis (do not produce operation recommendations in this pass).`

const defaultIntentWithRecsPrompt = intentAnalysisCore + intentAnalysisRecommendationTask + intentAnalysisInput + `
Begin the intent analysis.`

const defaultComprehensivePrompt = intentAnalysisCore + `

## Single-Pass Procedure

This input is one raw session. In a single pass:
1. Filter: decide which behaviors are valid by the criteria above (system-level events, pure technical events, and unresponded repeated displays are invalid) and report their indices in valid_action_indices, using the index values exactly as given in the input.
2. Segment: group the valid behaviors into intent phases by intent consistency. Each segment lists its behavior indices; every valid index must be assigned to exactly one segment.
3. Analyze: produce a full intent analysis for each segment, following the task instructions above.
` + intentAnalysisInput + `
Begin the comprehensive analysis.`

const defaultRecommendationPrompt = `You are an operations expert in the consumer credit industry. Based on the intent analysis below, advise the operations team on how to help this user complete a first transaction.

## Intent Analysis Result

Intent: {{intent}}
Category: {{intent_category}}
Confidence: {{confidence_score}}
Explored feature: {{explored_feature}}
Exploration purpose: {{exploration_purpose}}
Baseline trust: {{baseline_trust}}
Concerns: {{concerns}}
Key behaviors: {{key_behaviors}}
Reasoning: {{reasoning}}

## Your Task

1. Online solutions: in-app push, reminders, voucher grants, feature guidance
2. Offline solutions: callback, SMS, email, account manager contact
3. Recommendations must be specific and actionable against the user's intent, trust level, and concerns
4. Priority: judge readiness to complete a first transaction (High/Medium/Low)
5. Targeted message: a concrete intervention message tailored to the user's trust level and concerns

Generate the operation recommendations.`

// Prompts holds the template for each model call. Zero values mean the
// built-in defaults.
type Prompts struct {
	Filter         string
	Segmentation   string
	IntentOnly     string
	IntentWithRecs string
	Comprehensive  string
	Recommendation string
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() Prompts {
	return Prompts{
		Filter:         defaultFilterPrompt,
		Segmentation:   defaultSegmentationPrompt,
		IntentOnly:     defaultIntentOnlyPrompt,
		IntentWithRecs: defaultIntentWithRecsPrompt,
		Comprehensive:  defaultComprehensivePrompt,
		Recommendation: defaultRecommendationPrompt,
	}
}

var promptOverrideFiles = map[string]func(*Prompts) *string{
	"filter.txt":         func(p *Prompts) *string { return &p.Filter },
	"segmentation.txt":   func(p *Prompts) *string { return &p.Segmentation },
	"intent.txt":         func(p *Prompts) *string { return &p.IntentOnly },
	"intent_recs.txt":    func(p *Prompts) *string { return &p.IntentWithRecs },
	"comprehensive.txt":  func(p *Prompts) *string { return &p.Comprehensive },
	"recommendation.txt": func(p *Prompts) *string { return &p.Recommendation },
}

// LoadOverrides replaces templates with the contents of well-known files
// under dir, when present. Missing files keep the defaults.
func (p *Prompts) LoadOverrides(dir string) error {
	for name, field := range promptOverrideFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading prompt override %s: %w", name, err)
		}
		*field(p) = strings.TrimSpace(string(data))
	}
	return nil
}

// UserContext is the per-user header rendered into analysis prompts.
type UserContext struct {
	UserID           string
	ApprovedTime     string
	FirstPaymentTime string
	FirstActionTime  string
	LastActionTime   string
	TotalActions     int
	UniqueEvents     int
}

// BuildUserContext derives the prompt header from a user's full event list.
func BuildUserContext(ue UserEvents) UserContext {
	ctx := UserContext{
		UserID:           ue.UserID,
		ApprovedTime:     "N/A",
		FirstPaymentTime: "N/A",
		FirstActionTime:  "N/A",
		LastActionTime:   "N/A",
		TotalActions:     len(ue.Events),
	}
	if len(ue.Events) == 0 {
		return ctx
	}
	first := ue.Events[0]
	last := ue.Events[len(ue.Events)-1]
	if first.ApprovedTime != nil {
		ctx.ApprovedTime = FormatEventTime(first.ApprovedTime)
	}
	if first.FirstPaymentTime != nil {
		ctx.FirstPaymentTime = FormatEventTime(first.FirstPaymentTime)
	}
	if first.EventTime != nil {
		ctx.FirstActionTime = FormatEventTime(first.EventTime)
	}
	if last.EventTime != nil {
		ctx.LastActionTime = FormatEventTime(last.EventTime)
	}
	seen := make(map[string]struct{}, len(ue.Events))
	for _, ev := range ue.Events {
		seen[ev.EventName] = struct{}{}
	}
	ctx.UniqueEvents = len(seen)
	return ctx
}

// maxExtraInfoChars caps one event's extra_info inside a prompt row.
const maxExtraInfoChars = 500

// promptExtraInfo keeps an extra_info value on a single prompt row.
func promptExtraInfo(s string) string {
	return fileutils.SanitizeNewlines(fileutils.Truncate(s, maxExtraInfoChars))
}

// formatIndexedActions renders one line per event with its stable index,
// the form the filter and segmentation templates expect indices back in.
func formatIndexedActions(batch Batch) string {
	var b strings.Builder
	for i, ev := range batch.Events {
		fmt.Fprintf(&b, "%d. Index: %d, Event: %s, Time: %s", i+1, batch.StartIndex+i, ev.EventName, FormatEventTime(ev.EventTime))
		if extra := promptExtraInfo(ev.ExtraInfo); extra != "" {
			fmt.Fprintf(&b, ", Extra Info: %s", extra)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// formatActions renders the analysis-prompt flavor: time first, no indices.
func formatActions(events []Event) string {
	lines := make([]string, 0, len(events))
	for i, ev := range events {
		line := fmt.Sprintf("%d. Time: %s, Event: %s", i+1, FormatEventTime(ev.EventTime), ev.EventName)
		if extra := promptExtraInfo(ev.ExtraInfo); extra != "" {
			line += fmt.Sprintf(", Extra Info: %s", extra)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatHistory(history *AnalysisResult) string {
	if history == nil {
		return ""
	}
	return fmt.Sprintf(`
Previous intent analysis:
- Previous intent: %s
- Previous confidence: %.2f
- Previous analysis time: %s
`, history.Intent, history.ConfidenceScore, history.Timestamp)
}

func renderUserContext(template string, ctx UserContext) string {
	return strings.NewReplacer(
		"{{user_uuid}}", ctx.UserID,
		"{{approved_time}}", ctx.ApprovedTime,
		"{{first_payment_time}}", ctx.FirstPaymentTime,
		"{{first_action_time}}", ctx.FirstActionTime,
		"{{last_action_time}}", ctx.LastActionTime,
		"{{total_actions}}", strconv.Itoa(ctx.TotalActions),
		"{{unique_events}}", strconv.Itoa(ctx.UniqueEvents),
	).Replace(template)
}

// BuildFilterPrompt renders the valid-actions filter prompt for one batch.
func (p Prompts) BuildFilterPrompt(batch Batch) string {
	return strings.NewReplacer(
		"{{actions_count}}", strconv.Itoa(len(batch.Events)),
		"{{actions_text}}", formatIndexedActions(batch),
	).Replace(p.Filter)
}

// BuildSegmentationPrompt renders the intent-segmentation prompt for one batch.
func (p Prompts) BuildSegmentationPrompt(batch Batch) string {
	return strings.NewReplacer(
		"{{actions_count}}", strconv.Itoa(len(batch.Events)),
		"{{actions_text}}", formatIndexedActions(batch),
	).Replace(p.Segmentation)
}

// BuildAnalysisPrompt renders the per-segment intent analysis prompt.
// withRecommendation selects the template that also asks for operation
// recommendations in the same call.
func (p Prompts) BuildAnalysisPrompt(ctx UserContext, events []Event, history *AnalysisResult, withRecommendation bool) string {
	template := p.IntentOnly
	if withRecommendation {
		template = p.IntentWithRecs
	}
	out := renderUserContext(template, ctx)
	return strings.NewReplacer(
		"{{actions_text}}", formatActions(events),
		"{{history_text}}", formatHistory(history),
	).Replace(out)
}

// BuildComprehensivePrompt renders the fused filter+segment+analyze prompt
// for one whole session.
func (p Prompts) BuildComprehensivePrompt(ctx UserContext, batch Batch, history *AnalysisResult) string {
	out := renderUserContext(p.Comprehensive, ctx)
	return strings.NewReplacer(
		"{{actions_count}}", strconv.Itoa(len(batch.Events)),
		"{{actions_text}}", formatIndexedActions(batch),
		"{{history_text}}", formatHistory(history),
	).Replace(out)
}

// BuildRecommendationPrompt renders the standalone recommendation prompt from
// a previously persisted analysis.
func (p Prompts) BuildRecommendationPrompt(res AnalysisResult) string {
	concerns := make([]string, 0, len(res.Concerns))
	for _, c := range res.Concerns {
		concerns = append(concerns, fmt.Sprintf("%s (%s): %s", c.ConcernType, c.ConcernSeverity, c.ConcernDescription))
	}
	return strings.NewReplacer(
		"{{intent}}", res.Intent,
		"{{intent_category}}", res.IntentCategory,
		"{{confidence_score}}", strconv.FormatFloat(res.ConfidenceScore, 'f', 2, 64),
		"{{explored_feature}}", res.ExploredFeature,
		"{{exploration_purpose}}", res.ExplorationPurpose,
		"{{baseline_trust}}", strconv.FormatFloat(res.BaselineTrust, 'f', 2, 64),
		"{{concerns}}", strings.Join(concerns, "; "),
		"{{key_behaviors}}", strings.Join(res.KeyBehaviors, "; "),
		"{{reasoning}}", res.Reasoning,
	).Replace(p.Recommendation)
}
