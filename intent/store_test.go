package intent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "results.json"))
}

func TestStoreLoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	doc, err := tempStore(t).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc) != 0 {
		t.Fatalf("got %d users, want 0", len(doc))
	}
}

func TestStoreUpsertPreservesOtherUsers(t *testing.T) {
	t.Parallel()
	store := tempStore(t)
	if err := store.UpsertUserResult(UserResult{UserID: "a", TotalSessions: 1}); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if err := store.UpsertUserResult(UserResult{UserID: "b", TotalSessions: 2}); err != nil {
		t.Fatalf("upsert b: %v", err)
	}
	if err := store.UpsertUserResult(UserResult{UserID: "a", TotalSessions: 3}); err != nil {
		t.Fatalf("upsert a again: %v", err)
	}

	doc, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc) != 2 {
		t.Fatalf("got %d users, want 2", len(doc))
	}
	if doc["a"].TotalSessions != 3 || doc["b"].TotalSessions != 2 {
		t.Fatalf("unexpected doc: %+v", doc)
	}
}

func TestStoreCompletedUsers(t *testing.T) {
	t.Parallel()
	store := tempStore(t)
	if err := store.UpsertUserResult(UserResult{UserID: "a"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	done, err := store.CompletedUsers()
	if err != nil {
		t.Fatalf("CompletedUsers: %v", err)
	}
	if _, ok := done["a"]; !ok || len(done) != 1 {
		t.Fatalf("done = %v, want {a}", done)
	}
}

func TestStoreUpdate(t *testing.T) {
	t.Parallel()
	store := tempStore(t)
	if err := store.UpsertUserResult(UserResult{UserID: "a", TotalSessions: 1}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	err := store.Update(func(doc ResultDocument) error {
		u := doc["a"]
		u.TotalSessions = 9
		doc["a"] = u
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	doc, _ := store.Load()
	if doc["a"].TotalSessions != 9 {
		t.Fatalf("TotalSessions = %d, want 9", doc["a"].TotalSessions)
	}
}

func TestStoreWritesPrettyJSONWithoutHTMLEscaping(t *testing.T) {
	t.Parallel()
	store := tempStore(t)
	res := UserResult{UserID: "a"}
	res.Sessions = []AnalysisResult{{IntentFinding: IntentFinding{Intent: "show -> click <submit>"}}}
	if err := store.UpsertUserResult(res); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "show -> click <submit>") {
		t.Fatalf("angle brackets were escaped:\n%s", text)
	}
	if !strings.Contains(text, "\n  ") {
		t.Fatal("output is not indented")
	}
}

func TestSortedUserIDs(t *testing.T) {
	t.Parallel()
	doc := ResultDocument{"b": {}, "a": {}, "c": {}}
	got := SortedUserIDs(doc)
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("SortedUserIDs = %v", got)
	}
}
