package intent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Lenient decoding for the free-text model path. Models asked for JSON return
// it mangled in recurring ways: commas dropped between keys, single quotes,
// Python literals, raw control characters inside strings, truncated tails,
// prose wrapped around the object. DecodeLenient works through a layered
// chain of extraction and repair attempts; the regex field extractors below
// are the final salvage step before a caller applies its fail-open default.
// The schema-constrained path never comes through here.

// DecodeLenient extracts a JSON object from raw model text and unmarshals it
// into T. A candidate is accepted only when expectKey names a top-level array
// with at least one element (pass "" to accept any valid object). Layers, in
// order: direct first-{ to last-} slice; format repair; string-aware
// balanced-brace extraction with a regex last resort; aggressive
// non-printable stripping followed by the same chain.
func DecodeLenient[T any](raw string, expectKey string) (T, error) {
	var zero T

	try := func(js string) (T, bool) {
		if expectKey != "" && !keyHasElements(js, expectKey) {
			return zero, false
		}
		var out T
		if err := json.Unmarshal([]byte(js), &out); err != nil {
			return zero, false
		}
		return out, true
	}

	if s, ok := sliceObject(raw); ok {
		if out, ok := try(s); ok {
			return out, nil
		}
		if out, ok := try(RepairJSON(s)); ok {
			return out, nil
		}
	}

	for _, c := range extractCandidates(raw) {
		if out, ok := try(c); ok {
			return out, nil
		}
		if out, ok := try(RepairJSON(c)); ok {
			return out, nil
		}
	}

	stripped := stripNonPrintable(raw)
	if stripped != raw {
		if s, ok := sliceObject(stripped); ok {
			if out, ok := try(RepairJSON(s)); ok {
				return out, nil
			}
		}
		for _, c := range extractCandidates(stripped) {
			if out, ok := try(RepairJSON(c)); ok {
				return out, nil
			}
		}
	}

	return zero, fmt.Errorf("no usable JSON object with key %q in model output (len=%d)", expectKey, len(raw))
}

func keyHasElements(js string, key string) bool {
	res := gjson.Get(js, key)
	if !res.Exists() {
		return false
	}
	if res.IsArray() {
		return len(res.Array()) > 0
	}
	return true
}

// sliceObject cuts raw down to the first '{' through the last '}'.
func sliceObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// RepairJSON applies the format-repair sequence to a JSON candidate:
// missing-comma insertion, trailing-comma removal, control-character escaping
// inside string literals, single-quote normalization, and Python literal
// rewriting. It never fails; the output may still not parse.
func RepairJSON(s string) string {
	s = insertMissingCommas(s)
	s = stripTrailingCommas(s)
	s = escapeControlChars(s)
	s = normalizeSingleQuotes(s)
	s = rewritePythonLiterals(s)
	return s
}

// insertMissingCommas adds a comma where a value just ended and the next
// significant character opens what looks like a new key. The scan tracks
// in-string state (honoring backslash escapes); "looks like a new key" means
// the next ~20 characters contain a quote-colon sequence.
func insertMissingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)

	inStr := false
	escaped := false
	var lastSig byte

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			b.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inStr = false
				lastSig = '"'
			}
			continue
		}
		if c == '"' {
			if valueJustEnded(lastSig) && looksLikeKeyStart(s[i+1:]) {
				b.WriteByte(',')
			}
			inStr = true
			b.WriteByte(c)
			continue
		}
		if !isJSONSpace(c) {
			lastSig = c
		}
		b.WriteByte(c)
	}
	return b.String()
}

// valueJustEnded reports whether the previous significant byte plausibly
// terminates a value: closing brace/bracket, closing quote, a digit, or the
// final byte of true/false/null.
func valueJustEnded(c byte) bool {
	switch {
	case c == '}' || c == ']' || c == '"':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == 'e' || c == 'l': // tru[e], fals[e], nul[l]
		return true
	}
	return false
}

func looksLikeKeyStart(after string) bool {
	window := after
	if len(window) > 20 {
		window = window[:20]
	}
	return strings.Contains(window, `":`)
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// stripTrailingCommas removes commas that sit directly before a closing
// brace or bracket (whitespace allowed between), outside strings only.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inStr := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		if c == '"' {
			inStr = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && isJSONSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue // drop the comma
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// escapeControlChars escapes raw control characters found inside string
// literals. Characters outside strings are left alone at this layer.
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inStr := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inStr {
			if c == '"' {
				inStr = true
			}
			b.WriteByte(c)
			continue
		}
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		switch {
		case c == '\\':
			escaped = true
			b.WriteByte(c)
		case c == '"':
			inStr = false
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\t':
			b.WriteString(`\t`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\b':
			b.WriteString(`\b`)
		case c == '\f':
			b.WriteString(`\f`)
		case c < 0x20:
			fmt.Fprintf(&b, `\u%04x`, c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// normalizeSingleQuotes rewrites single-quoted keys and simple values to
// double-quoted form. Only spans without embedded double quotes or newlines
// are converted; anything else is left untouched.
func normalizeSingleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inStr := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		if c == '"' {
			inStr = true
			b.WriteByte(c)
			continue
		}
		if c == '\'' {
			end := -1
			for j := i + 1; j < len(s); j++ {
				if s[j] == '\\' {
					j++
					continue
				}
				if s[j] == '\'' {
					end = j
					break
				}
				if s[j] == '"' || s[j] == '\n' {
					break
				}
			}
			if end > i {
				inner := strings.ReplaceAll(s[i+1:end], `\'`, `'`)
				b.WriteByte('"')
				b.WriteString(inner)
				b.WriteByte('"')
				i = end
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// rewritePythonLiterals converts True/False/None to their JSON spellings when
// they appear in value position (after a colon, comma, or opening bracket).
func rewritePythonLiterals(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inStr := false
	escaped := false
	var lastSig byte

	valuePosition := func() bool {
		return lastSig == ':' || lastSig == ',' || lastSig == '['
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		if c == '"' {
			inStr = true
			lastSig = '"'
			b.WriteByte(c)
			continue
		}
		if valuePosition() {
			switch {
			case strings.HasPrefix(s[i:], "True") && wordEndsAt(s, i+4):
				b.WriteString("true")
				i += 3
				lastSig = 'e'
				continue
			case strings.HasPrefix(s[i:], "False") && wordEndsAt(s, i+5):
				b.WriteString("false")
				i += 4
				lastSig = 'e'
				continue
			case strings.HasPrefix(s[i:], "None") && wordEndsAt(s, i+4):
				b.WriteString("null")
				i += 3
				lastSig = 'l'
				continue
			}
		}
		if !isJSONSpace(c) {
			lastSig = c
		}
		b.WriteByte(c)
	}
	return b.String()
}

func wordEndsAt(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_')
}

// oneLevelObject matches a JSON-ish object with at most one level of nesting;
// the regex last resort when structural scanning finds nothing.
var oneLevelObject = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)

// extractCandidates re-scans raw for balanced-brace JSON candidates. It first
// tries a string-aware scan from the first '{'; failing that, it pairs every
// '{' with its structurally matching '}'; finally it falls back to the
// one-level-nesting regex, longest match first.
func extractCandidates(raw string) []string {
	if c, ok := balancedObject(raw); ok {
		return []string{c}
	}

	var candidates []string
	var stack []int
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			stack = append(stack, i)
		case '}':
			if len(stack) > 0 {
				open := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				candidates = append(candidates, raw[open:i+1])
			}
		}
	}
	if len(candidates) > 0 {
		// Try larger (outer) candidates before inner fragments.
		for i, j := 0, len(candidates)-1; i < j; i, j = i+1, j-1 {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		}
		return candidates
	}

	matches := oneLevelObject.FindAllString(raw, -1)
	if len(matches) == 0 {
		return nil
	}
	longest := matches[0]
	for _, m := range matches[1:] {
		if len(m) > len(longest) {
			longest = m
		}
	}
	return []string{longest}
}

// balancedObject scans from the first '{' tracking in-string state, so braces
// inside string literals don't count toward nesting depth.
func balancedObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inStr := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inStr {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

// stripNonPrintable drops non-printable characters outside strings, and
// inside strings escapes \n/\r/\t while dropping every other control byte.
func stripNonPrintable(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	inStr := false
	escaped := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inStr {
			if escaped {
				escaped = false
				b.WriteByte(c)
				continue
			}
			switch {
			case c == '\\':
				escaped = true
				b.WriteByte(c)
			case c == '"':
				inStr = false
				b.WriteByte(c)
			case c == '\n':
				b.WriteString(`\n`)
			case c == '\r':
				b.WriteString(`\r`)
			case c == '\t':
				b.WriteString(`\t`)
			case c < 0x20 || c == 0x7f:
				// dropped
			default:
				b.WriteByte(c)
			}
			continue
		}
		if c == '"' {
			inStr = true
			b.WriteByte(c)
			continue
		}
		if c < 0x20 && c != '\n' && c != '\r' && c != '\t' {
			continue
		}
		if c == 0x7f {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

var (
	indexField      = regexp.MustCompile(`"index"\s*:\s*(-?\d+)`)
	isValidField    = regexp.MustCompile(`"is_valid"\s*:\s*(?i:(true|false))`)
	behaviorIndices = regexp.MustCompile(`"behavior_indices"\s*:\s*\[([^\]]*)\]`)
	intLiteral      = regexp.MustCompile(`-?\d+`)
)

// ExtractFilterVerdicts salvages (index, is_valid) pairs from raw text by
// positional correspondence, without parsing JSON. Unpaired trailing matches
// are discarded.
func ExtractFilterVerdicts(raw string) []ActionVerdict {
	idxMatches := indexField.FindAllStringSubmatch(raw, -1)
	validMatches := isValidField.FindAllStringSubmatch(raw, -1)

	n := len(idxMatches)
	if len(validMatches) < n {
		n = len(validMatches)
	}
	verdicts := make([]ActionVerdict, 0, n)
	for i := 0; i < n; i++ {
		idx, err := strconv.Atoi(idxMatches[i][1])
		if err != nil {
			continue
		}
		verdicts = append(verdicts, ActionVerdict{
			Index:   idx,
			IsValid: strings.EqualFold(validMatches[i][1], "true"),
		})
	}
	return verdicts
}

// ExtractSegmentIndexLists salvages every behavior_indices array literal from
// raw text, one int list per model-declared segment.
func ExtractSegmentIndexLists(raw string) [][]int {
	var lists [][]int
	for _, m := range behaviorIndices.FindAllStringSubmatch(raw, -1) {
		var indices []int
		for _, lit := range intLiteral.FindAllString(m[1], -1) {
			idx, err := strconv.Atoi(lit)
			if err != nil {
				continue
			}
			indices = append(indices, idx)
		}
		if len(indices) > 0 {
			lists = append(lists, indices)
		}
	}
	return lists
}
