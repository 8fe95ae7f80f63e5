// Package devserver is an in-memory stand-in for the verification backend:
// the REST surface the client calls, HS256 tokens, and a WebSocket relay
// room with a scripted agent. Nothing is persisted.
package devserver

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lexnova/lexnova/internal/api"
	"github.com/lexnova/lexnova/internal/joincode"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrExists     = errors.New("already exists")
	ErrNotStarted = errors.New("session has not started")
)

type user struct {
	api.User
	passwordHash string
}

type session struct {
	api.Session
	ownerID string
	report  *api.SessionReport
}

type idemRecord struct {
	status int
	body   []byte
}

// Store holds users, sessions, reports, and replayable responses.
type Store struct {
	mu       sync.Mutex
	users    map[string]*user // by lower-cased email
	sessions map[string]*session
	order    []string
	idem     map[string]idemRecord
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:    make(map[string]*user),
		sessions: make(map[string]*session),
		idem:     make(map[string]idemRecord),
		now:      time.Now,
	}
}

func hashPassword(pw string) string {
	sum := sha256.Sum256([]byte(pw))
	return hex.EncodeToString(sum[:])
}

// Register adds a lawyer account.
func (s *Store) Register(email, password, name string) (api.User, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[key]; ok {
		return api.User{}, ErrExists
	}
	u := &user{
		User:         api.User{ID: uuid.NewString(), Email: strings.TrimSpace(email), Name: strings.TrimSpace(name)},
		passwordHash: hashPassword(password),
	}
	s.users[key] = u
	return u.User, nil
}

// Authenticate checks credentials.
func (s *Store) Authenticate(email, password string) (api.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return api.User{}, false
	}
	if subtle.ConstantTimeCompare([]byte(u.passwordHash), []byte(hashPassword(password))) != 1 {
		return api.User{}, false
	}
	return u.User, true
}

// User returns the account with id.
func (s *Store) User(id string) (api.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u.User, true
		}
	}
	return api.User{}, false
}

// Sessions returns ownerID's sessions, oldest first.
func (s *Store) Sessions(ownerID string) []api.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.Session{}
	for _, id := range s.order {
		if sess := s.sessions[id]; sess.ownerID == ownerID {
			out = append(out, sess.Session)
		}
	}
	return out
}

// CreateSession adds a pending session with a fresh join code.
func (s *Store) CreateSession(ownerID string, req api.NewSession) (api.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.uniqueCode()
	if err != nil {
		return api.Session{}, err
	}
	if req.Date == "" {
		req.Date = s.now().Format(time.RFC3339)
	}
	cfg := api.DefaultAIConfig()
	if req.AIConfig != nil {
		cfg = *req.AIConfig
	}
	sess := &session{
		Session: api.Session{
			ID:          uuid.NewString(),
			GroomName:   strings.TrimSpace(req.GroomName),
			BrideName:   strings.TrimSpace(req.BrideName),
			Date:        req.Date,
			Status:      api.StatusPending,
			AIConfig:    &cfg,
			SessionCode: code,
		},
		ownerID: ownerID,
	}
	s.sessions[sess.ID] = sess
	s.order = append(s.order, sess.ID)
	return sess.Session, nil
}

func (s *Store) uniqueCode() (string, error) {
	for range 10 {
		code, err := joincode.Generate()
		if err != nil {
			return "", fmt.Errorf("generate session code: %w", err)
		}
		taken := false
		for _, sess := range s.sessions {
			if sess.SessionCode == code {
				taken = true
				break
			}
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("generate session code: too many collisions")
}

func (s *Store) owned(ownerID, id string) (*session, error) {
	sess, ok := s.sessions[id]
	if !ok || sess.ownerID != ownerID {
		return nil, ErrNotFound
	}
	return sess, nil
}

// SetScript attaches script content and marks a pending session ready.
func (s *Store) SetScript(ownerID, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.owned(ownerID, id)
	if err != nil {
		return err
	}
	sess.ScriptContent = content
	if sess.Status == api.StatusPending {
		sess.Status = api.StatusReady
	}
	return nil
}

// Start marks a session active.
func (s *Store) Start(ownerID, id string) (api.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.owned(ownerID, id)
	if err != nil {
		return api.Session{}, err
	}
	if sess.Status.Rank() < api.StatusActive.Rank() {
		sess.Status = api.StatusActive
	}
	return sess.Session, nil
}

// SessionByCode finds the session a participant is joining.
func (s *Store) SessionByCode(code string) (api.Session, error) {
	code = joincode.Normalize(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.SessionCode != code {
			continue
		}
		if sess.Status != api.StatusActive {
			return api.Session{}, ErrNotStarted
		}
		return sess.Session, nil
	}
	return api.Session{}, ErrNotFound
}

// Complete marks a session completed and files its report. The fraud
// analysis is fixed; real analysis happens in the production backend.
func (s *Store) Complete(id string, transcript []api.TranscriptEntry, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.Status = api.StatusCompleted

	flagged := 0
	for _, e := range transcript {
		if e.Flagged {
			flagged++
		}
	}
	notes := []string{"Both parties verbally consented.", "Identity documents presented on camera."}
	risk := 12
	if flagged > 0 {
		risk += 15 * flagged
		notes = append(notes, fmt.Sprintf("%d statement(s) flagged for hesitation.", flagged))
	}
	sess.report = &api.SessionReport{
		SessionID:  id,
		Duration:   formatDuration(duration),
		Transcript: transcript,
		FraudAnalysis: api.FraudAnalysis{
			RiskScore:            min(risk, 100),
			VoiceMatchConfidence: 96,
			Notes:                notes,
		},
	}
}

// Report returns a session's report.
func (s *Store) Report(ownerID, id string) (api.SessionReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.owned(ownerID, id)
	if err != nil {
		return api.SessionReport{}, err
	}
	if sess.report == nil {
		return api.SessionReport{}, ErrNotFound
	}
	return *sess.report, nil
}

// Certify marks a report certified today.
func (s *Store) Certify(ownerID, id string) (api.SessionReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.owned(ownerID, id)
	if err != nil {
		return api.SessionReport{}, err
	}
	if sess.report == nil {
		return api.SessionReport{}, ErrNotFound
	}
	if !sess.report.Certified {
		sess.report.Certified = true
		sess.report.CertificationDate = s.now().Format("2006-01-02")
	}
	return *sess.report, nil
}

func (s *Store) replay(key string) (idemRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.idem[key]
	return rec, ok
}

func (s *Store) remember(key string, rec idemRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idem[key] = rec
}

func formatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
