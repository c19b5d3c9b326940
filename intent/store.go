package intent

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/gofrs/flock"

	"github.com/clariondata/intentline/intent/fileutils"
)

// Store persists the result document at a fixed path. Every mutation takes a
// sibling .lock file, re-reads the document, applies the change, and writes
// the whole document back atomically, so concurrent workers and separate
// processes never lose each other's users. The lock is held only around the
// read-modify-write, never across a model call.
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore opens a store at path. The file does not need to exist yet.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the document location.
func (s *Store) Path() string { return s.path }

// Load reads the whole document. A missing file is an empty document.
func (s *Store) Load() (ResultDocument, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return ResultDocument{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading results %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return ResultDocument{}, nil
	}
	var doc ResultDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding results %s: %w", s.path, err)
	}
	if doc == nil {
		doc = ResultDocument{}
	}
	return doc, nil
}

// Save replaces the whole document.
func (s *Store) Save(doc ResultDocument) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("locking results %s: %w", s.path, err)
	}
	defer s.lock.Unlock()
	return fileutils.WriteJSONFileAtomic(s.path, doc, true)
}

// UpsertUserResult merges one user's result into the document under the
// lock. Other users' entries written since the last read are preserved.
func (s *Store) UpsertUserResult(res UserResult) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("locking results %s: %w", s.path, err)
	}
	defer s.lock.Unlock()

	doc, err := s.Load()
	if err != nil {
		return err
	}
	doc[res.UserID] = res
	return fileutils.WriteJSONFileAtomic(s.path, doc, true)
}

// Update applies fn to the document under the lock and writes it back. fn
// mutates the document in place.
func (s *Store) Update(fn func(doc ResultDocument) error) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("locking results %s: %w", s.path, err)
	}
	defer s.lock.Unlock()

	doc, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return fileutils.WriteJSONFileAtomic(s.path, doc, true)
}

// CompletedUsers returns the set of user IDs already present in the
// document, used to skip finished users on resume.
func (s *Store) CompletedUsers() (map[string]struct{}, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	done := make(map[string]struct{}, len(doc))
	for id := range doc {
		done[id] = struct{}{}
	}
	return done, nil
}

// SortedUserIDs returns the document's user IDs in lexical order, for
// deterministic iteration in reports and the viewer.
func SortedUserIDs(doc ResultDocument) []string {
	ids := make([]string, 0, len(doc))
	for id := range doc {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
