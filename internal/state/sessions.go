package state

import (
	"bytes"
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lexnova/lexnova/internal/api"
)

// Error strings recorded by SessionStore.
const (
	MsgFetchFailed   = "Failed to fetch sessions"
	MsgCreateFailed  = "Failed to create session"
	MsgUploadFailed  = "Failed to upload script"
	MsgStartFailed   = "Failed to start session"
	MsgReportFailed  = "Failed to fetch session report"
	MsgAnalyzeFailed = "Failed to analyze script"
)

// SessionStore caches the lawyer's sessions. The cache is only ever
// replaced wholesale by a server fetch.
type SessionStore struct {
	client *api.Client

	mu       sync.RWMutex
	sessions []api.Session
	pending  int
	errMsg   string
	creating bool

	// Fetch generations. A response only replaces the cache when no
	// later-started fetch has been applied already.
	fetchGen   uint64
	appliedGen uint64
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore(client *api.Client) *SessionStore {
	return &SessionStore{client: client, sessions: []api.Session{}}
}

// Sessions returns a copy of the cached list.
func (s *SessionStore) Sessions() []api.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Session returns the cached session with id.
func (s *SessionStore) Session(id string) (api.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return api.Session{}, false
}

// Filter returns cached sessions whose groom name, bride name, or id
// contains query, ignoring case. An empty query returns everything.
func (s *SessionStore) Filter(query string) []api.Session {
	query = strings.ToLower(strings.TrimSpace(query))
	all := s.Sessions()
	if query == "" {
		return all
	}
	var out []api.Session
	for _, sess := range all {
		if strings.Contains(strings.ToLower(sess.GroomName), query) ||
			strings.Contains(strings.ToLower(sess.BrideName), query) ||
			strings.Contains(strings.ToLower(sess.ID), query) {
			out = append(out, sess)
		}
	}
	return out
}

// Loading reports whether any store operation is running.
func (s *SessionStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending > 0
}

// Err returns the message recorded by the last failed operation, or "".
func (s *SessionStore) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

func (s *SessionStore) begin() {
	s.mu.Lock()
	s.pending++
	s.errMsg = ""
	s.mu.Unlock()
}

func (s *SessionStore) end(msg string, err error) {
	s.mu.Lock()
	s.pending--
	if err != nil {
		s.errMsg = msg
	}
	s.mu.Unlock()
	if err != nil {
		log.Printf("%s: %v", strings.ToLower(msg), err)
	}
}

// FetchSessions replaces the cache with the server's list. On failure the
// cache is left as it was. A response that arrives after a later-started
// fetch was applied is discarded.
func (s *SessionStore) FetchSessions(ctx context.Context) error {
	s.mu.Lock()
	s.fetchGen++
	gen := s.fetchGen
	s.mu.Unlock()

	s.begin()
	sessions, err := s.client.ListSessions(ctx)
	if err == nil {
		s.mu.Lock()
		if gen > s.appliedGen {
			s.sessions = sessions
			s.appliedGen = gen
		}
		s.mu.Unlock()
	}
	s.end(MsgFetchFailed, err)
	return err
}

// CreateSession posts req and then refetches the list. The created record
// is returned; the cache only ever reflects the server's view. A second
// call while one is running returns ErrInFlight without a request.
func (s *SessionStore) CreateSession(ctx context.Context, req api.NewSession) (*api.Session, error) {
	if err := ValidateNewSession(req); err != nil {
		return nil, err
	}
	req.GroomName = strings.TrimSpace(req.GroomName)
	req.BrideName = strings.TrimSpace(req.BrideName)
	if req.Date == "" {
		req.Date = time.Now().Format(time.RFC3339)
	}
	if req.AIConfig == nil {
		cfg := api.DefaultAIConfig()
		req.AIConfig = &cfg
	}

	s.mu.Lock()
	if s.creating {
		s.mu.Unlock()
		return nil, ErrInFlight
	}
	s.creating = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.creating = false
		s.mu.Unlock()
	}()

	s.begin()
	created, err := s.client.CreateSession(ctx, req)
	s.end(MsgCreateFailed, err)
	if err != nil {
		return nil, err
	}

	// The session exists server-side now; a failed refresh is recorded but
	// does not fail the create.
	s.FetchSessions(ctx)
	return created, nil
}

// UploadScript attaches a ceremony script to a session and refetches.
func (s *SessionStore) UploadScript(ctx context.Context, sessionID, filename string, r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, MaxScriptBytes+1))
	if err != nil {
		return err
	}
	if len(data) > MaxScriptBytes {
		return invalid("Script file must be 10 MB or smaller")
	}

	s.begin()
	err = s.client.UploadScript(ctx, sessionID, filename, bytes.NewReader(data))
	s.end(MsgUploadFailed, err)
	if err != nil {
		return err
	}
	s.FetchSessions(ctx)
	return nil
}

// StartSession asks the backend to open the room and returns the per-role
// join tokens. The cached status is not touched.
func (s *SessionStore) StartSession(ctx context.Context, sessionID string) (*api.StartTokens, error) {
	s.begin()
	tokens, err := s.client.StartSession(ctx, sessionID)
	s.end(MsgStartFailed, err)
	return tokens, err
}

// FetchReport returns the post-session report. It is not cached.
func (s *SessionStore) FetchReport(ctx context.Context, sessionID string) (*api.SessionReport, error) {
	s.begin()
	report, err := s.client.GetReport(ctx, sessionID)
	s.end(MsgReportFailed, err)
	return report, err
}

// AnalyzeScript asks the backend for a structured summary of content.
func (s *SessionStore) AnalyzeScript(ctx context.Context, content string) (*api.ScriptAnalysis, error) {
	if len(strings.TrimSpace(content)) < MinScriptLength {
		return nil, invalid("Script must be at least %d characters", MinScriptLength)
	}
	s.begin()
	analysis, err := s.client.AnalyzeScript(ctx, content)
	s.end(MsgAnalyzeFailed, err)
	return analysis, err
}
