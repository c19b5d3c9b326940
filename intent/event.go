package intent

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrMissingDataSource is returned when the event file cannot be found, so
// batch callers can treat a missing input uniformly instead of crashing.
var ErrMissingDataSource = errors.New("missing event data source")

// eventTimeLayout matches the export format of the clickstream dump
// (e.g. "2024/03/07 14:05").
const eventTimeLayout = "2006/01/02 15:04"

// Event is one user-behavior record. Events are immutable once loaded;
// ordering key is (UserID, EventTime).
type Event struct {
	UserID    string
	EventName string
	// EventTime is nil when the source timestamp could not be parsed.
	EventTime *time.Time
	ExtraInfo string

	ApprovedTime     *time.Time
	FirstPaymentTime *time.Time
}

// decoders is the fixed fallback order for input text encodings. UTF-8 is
// validated first; the legacy encodings cannot fail, so order matters.
var decoders = []struct {
	name string
	enc  encoding.Encoding
}{
	{"utf-8", unicode.UTF8},
	{"gbk", simplifiedchinese.GBK},
	{"gb18030", simplifiedchinese.GB18030},
	{"latin1", charmap.ISO8859_1},
	{"windows-1252", charmap.Windows1252},
}

// LoadEvents reads the clickstream CSV at path, trying each supported text
// encoding in order, and returns all events sorted by (user, time). Rows with
// unparsable timestamps keep a nil EventTime rather than failing the load.
func LoadEvents(path string) ([]Event, error) {
	if path == "" {
		return nil, fmt.Errorf("LoadEvents: %w: path is empty", ErrMissingDataSource)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("LoadEvents: %w: %s", ErrMissingDataSource, path)
		}
		return nil, fmt.Errorf("LoadEvents: read: %w", err)
	}

	var lastErr error
	for _, d := range decoders {
		decoded, err := decodeAll(raw, d.enc)
		if err != nil {
			lastErr = err
			continue
		}
		events, err := parseEventCSV(decoded)
		if err != nil {
			lastErr = err
			continue
		}
		sortEvents(events)
		return events, nil
	}
	return nil, fmt.Errorf("LoadEvents: no usable encoding: %w", lastErr)
}

func decodeAll(raw []byte, enc encoding.Encoding) ([]byte, error) {
	if enc == unicode.UTF8 {
		// The transform path passes invalid UTF-8 through; reject it here so
		// the legacy decoders get their turn.
		if !utf8.Valid(raw) {
			return nil, errors.New("invalid utf-8")
		}
		return raw, nil
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	return out, err
}

func parseEventCSV(data []byte) ([]Event, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"user_uuid", "event_name", "event_time"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var events []Event
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		events = append(events, Event{
			UserID:           field(rec, "user_uuid"),
			EventName:        field(rec, "event_name"),
			EventTime:        coerceTime(field(rec, "event_time")),
			ExtraInfo:        field(rec, "extra_info"),
			ApprovedTime:     coerceTime(field(rec, "approved_time")),
			FirstPaymentTime: coerceTime(field(rec, "first_payment_time")),
		})
	}
	return events, nil
}

// coerceTime parses the fixed export layout, returning nil on failure rather
// than an error; downstream stages treat nil as an unknown timestamp.
func coerceTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(eventTimeLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].UserID != events[j].UserID {
			return events[i].UserID < events[j].UserID
		}
		ti, tj := events[i].EventTime, events[j].EventTime
		switch {
		case ti == nil && tj == nil:
			return false
		case ti == nil:
			return true
		case tj == nil:
			return false
		default:
			return ti.Before(*tj)
		}
	})
}

// GroupByUser splits a (user, time)-sorted event list into per-user slices,
// preserving first-seen user order.
func GroupByUser(events []Event) []UserEvents {
	var groups []UserEvents
	byUser := make(map[string]int)
	for _, ev := range events {
		i, ok := byUser[ev.UserID]
		if !ok {
			i = len(groups)
			byUser[ev.UserID] = i
			groups = append(groups, UserEvents{UserID: ev.UserID})
		}
		groups[i].Events = append(groups[i].Events, ev)
	}
	return groups
}

// UserEvents is one user's full, time-ordered action list.
type UserEvents struct {
	UserID string
	Events []Event
}

// FormatEventTime renders a nullable timestamp for prompts and artifacts.
func FormatEventTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(eventTimeLayout)
}
