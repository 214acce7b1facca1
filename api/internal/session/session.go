package session

import (
	"errors"
	"sync"
	"time"

	"med-vision/api/internal/analysis"
	"med-vision/api/internal/upload"
)

// ErrNoUpload is returned when there is no uploaded image left to analyze.
var ErrNoUpload = errors.New("no uploaded image")

// Session is the per-user state the UI handlers work on.
type Session struct {
	ID string

	mu         sync.Mutex
	uploadPath string
	uploadName string
	result     *analysis.Report
	simplified *analysis.Report
	lastSeen   time.Time
}

// SetUpload records a fresh upload and returns the path of the one it
// replaced, which the caller must discard.
func (s *Session) SetUpload(path, name string) (previous string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous = s.uploadPath
	s.uploadPath, s.uploadName = path, name
	return previous
}

func (s *Session) Upload() (path, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadPath, s.uploadName
}

// TakeUpload hands the upload over to the analysis and forgets it; the
// display name is kept for the page.
func (s *Session) TakeUpload() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.uploadPath
	if p == "" || !upload.Exists(p) {
		s.uploadPath = ""
		return "", ErrNoUpload
	}
	s.uploadPath = ""
	return p, nil
}

// SetResult replaces the live result; a previous simplification is dropped.
func (s *Session) SetResult(r analysis.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = &r
	s.simplified = nil
}

func (s *Session) Result() (analysis.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return analysis.Report{}, false
	}
	return *s.result, true
}

func (s *Session) SetSimplified(r *analysis.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simplified = r
}

func (s *Session) Simplified() (analysis.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.simplified == nil {
		return analysis.Report{}, false
	}
	return *s.simplified, true
}

// CanSimplify reports whether the ELI5 option should be offered.
func (s *Session) CanSimplify() bool {
	r, ok := s.Result()
	return ok && r.OK() && r.Text != ""
}

// Reset drops everything and returns the pending upload path.
func (s *Session) Reset() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.uploadPath
	s.uploadPath, s.uploadName = "", ""
	s.result, s.simplified = nil, nil
	return p
}

type Store struct {
	mu  sync.Mutex
	m   map[string]*Session
	now func() time.Time
}

func NewStore() *Store {
	return &Store{m: make(map[string]*Session), now: time.Now}
}

// Get returns the session for id, creating it on first use.
func (st *Store) Get(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.m[id]
	if !ok {
		s = &Session{ID: id}
		st.m[id] = s
	}
	s.mu.Lock()
	s.lastSeen = st.now()
	s.mu.Unlock()
	return s
}

func (st *Store) Delete(id string) {
	st.mu.Lock()
	s, ok := st.m[id]
	delete(st.m, id)
	st.mu.Unlock()
	if ok {
		_ = upload.Discard(s.Reset())
	}
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.m)
}

// Sweep drops sessions idle for longer than maxIdle and discards their
// pending uploads. It returns the number of sessions removed.
func (st *Store) Sweep(maxIdle time.Duration) int {
	cutoff := st.now().Add(-maxIdle)
	var expired []*Session

	st.mu.Lock()
	for id, s := range st.m {
		s.mu.Lock()
		idle := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			expired = append(expired, s)
			delete(st.m, id)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		_ = upload.Discard(s.Reset())
	}
	return len(expired)
}
