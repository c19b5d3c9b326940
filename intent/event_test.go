package intent

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

const sampleCSV = `user_uuid,event_name,event_time,extra_info,approved_time,first_payment_time
u2,show_homepage,2024/03/01 10:05,,2024/02/28 09:00,
u1,click_banner,2024/03/01 10:10,new user gift,2024/02/27 12:00,
u1,show_homepage,2024/03/01 10:00,,2024/02/27 12:00,
u1,show_limit_page,not-a-time,,2024/02/27 12:00,
`

func TestLoadEventsSortsByUserThenTime(t *testing.T) {
	t.Parallel()
	events, err := LoadEvents(writeCSV(t, sampleCSV))
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	// u1 sorts before u2; within u1, the nil timestamp sorts first.
	if events[0].UserID != "u1" || events[0].EventTime != nil {
		t.Fatalf("first event = %+v, want u1 with nil time", events[0])
	}
	if events[1].EventName != "show_homepage" || events[2].EventName != "click_banner" {
		t.Fatalf("u1 events out of order: %q then %q", events[1].EventName, events[2].EventName)
	}
	if events[3].UserID != "u2" {
		t.Fatalf("last event user = %q, want u2", events[3].UserID)
	}
}

func TestLoadEventsUnparsableTimestampBecomesNil(t *testing.T) {
	t.Parallel()
	events, err := LoadEvents(writeCSV(t, sampleCSV))
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	var found bool
	for _, ev := range events {
		if ev.EventName == "show_limit_page" {
			found = true
			if ev.EventTime != nil {
				t.Fatalf("unparsable timestamp produced %v, want nil", ev.EventTime)
			}
		}
	}
	if !found {
		t.Fatal("row with bad timestamp was dropped")
	}
}

func TestLoadEventsMissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadEvents(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, ErrMissingDataSource) {
		t.Fatalf("err = %v, want ErrMissingDataSource", err)
	}
}

func TestLoadEventsMissingRequiredColumn(t *testing.T) {
	t.Parallel()
	_, err := LoadEvents(writeCSV(t, "user_uuid,event_name\nu1,click\n"))
	if err == nil {
		t.Fatal("expected error for missing event_time column")
	}
}

func TestLoadEventsGBKFallback(t *testing.T) {
	t.Parallel()
	utf8CSV := "user_uuid,event_name,event_time,extra_info\nu1,click_voucher,2024/03/01 10:00,满减券\n"
	encoded, _, err := transform.Bytes(simplifiedchinese.GBK.NewEncoder(), []byte(utf8CSV))
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "gbk.csv")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	events, err := LoadEvents(path)
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(events) != 1 || events[0].ExtraInfo != "满减券" {
		t.Fatalf("GBK content not decoded: %+v", events)
	}
}

func TestGroupByUserPreservesFirstSeenOrder(t *testing.T) {
	t.Parallel()
	events := []Event{
		{UserID: "b", EventName: "1"},
		{UserID: "b", EventName: "2"},
		{UserID: "a", EventName: "3"},
		{UserID: "a", EventName: "4"},
	}
	groups := GroupByUser(events)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].UserID != "b" || groups[1].UserID != "a" {
		t.Fatalf("group order = %s,%s, want b,a", groups[0].UserID, groups[1].UserID)
	}
	if len(groups[0].Events) != 2 || len(groups[1].Events) != 2 {
		t.Fatalf("group sizes = %d,%d, want 2,2", len(groups[0].Events), len(groups[1].Events))
	}
}

func TestFormatEventTime(t *testing.T) {
	t.Parallel()
	if got := FormatEventTime(nil); got != "" {
		t.Fatalf("FormatEventTime(nil) = %q, want empty", got)
	}
	ts := ts(t, "2024/03/01 10:05")
	if got := FormatEventTime(ts); got != "2024/03/01 10:05" {
		t.Fatalf("FormatEventTime = %q", got)
	}
}
