package state

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexnova/lexnova/internal/api"
	"github.com/lexnova/lexnova/internal/db"
)

// fakeBackend is a minimal in-memory backend for store tests.
type fakeBackend struct {
	mu         sync.Mutex
	sessions   []api.Session
	creates    int
	listFails  bool
	meFails    bool
	uploadErr  bool
	createGate chan struct{}
	createSeen chan struct{}
}

func (f *fakeBackend) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/auth/login":
			json.NewEncoder(w).Encode(api.LoginResponse{AccessToken: "tok-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/auth/me":
			if f.meFails || r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(api.User{ID: "u1", Email: "ann@firm.test", Name: "Ann"})
		case r.Method == http.MethodPost && r.URL.Path == "/auth/register":
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet && r.URL.Path == "/sessions":
			if f.listFails {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(f.sessions)
		case r.Method == http.MethodPost && r.URL.Path == "/sessions":
			if f.createSeen != nil {
				f.mu.Unlock()
				f.createSeen <- struct{}{}
				<-f.createGate
				f.mu.Lock()
			}
			var req api.NewSession
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			f.creates++
			s := api.Session{ID: "s-new", GroomName: req.GroomName, BrideName: req.BrideName, Date: req.Date, Status: api.StatusPending}
			f.sessions = append(f.sessions, s)
			json.NewEncoder(w).Encode(s)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/script"):
			if f.uploadErr {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"detail":"Unsupported file type"}`))
				return
			}
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/start"):
			w.Write([]byte(`{"groom_token":"g","bride_token":"b","lawyer_token":"l"}`))
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/report"):
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Report not found"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/analyze-script":
			json.NewEncoder(w).Encode(api.ScriptAnalysis{Tone: "Formal", QuestionCount: 3})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newFake(t *testing.T, f *fakeBackend) *api.Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return api.NewClient(srv.URL, api.WithTokenSource(func() string { return "tok-1" }))
}

type memPersister struct {
	rec      *db.AuthRecord
	saves    int
	clearErr error
}

func (m *memPersister) LoadAuth() (*db.AuthRecord, error) { return m.rec, nil }
func (m *memPersister) SaveAuth(rec db.AuthRecord) error {
	m.saves++
	m.rec = &rec
	return nil
}
func (m *memPersister) ClearAuth() error {
	m.rec = nil
	return m.clearErr
}

func TestFetchSessionsReplacesCache(t *testing.T) {
	f := &fakeBackend{sessions: []api.Session{{ID: "a"}, {ID: "b"}}}
	store := NewSessionStore(newFake(t, f))

	require.NoError(t, store.FetchSessions(context.Background()))
	assert.Len(t, store.Sessions(), 2)

	f.mu.Lock()
	f.sessions = []api.Session{{ID: "c"}}
	f.mu.Unlock()

	require.NoError(t, store.FetchSessions(context.Background()))
	got := store.Sessions()
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
	assert.False(t, store.Loading())
	assert.Empty(t, store.Err())
}

func TestSlowRefreshDoesNotOverwriteNewerFetch(t *testing.T) {
	var mu sync.Mutex
	var sessions []api.Session
	lists := 0
	firstListed := make(chan struct{})
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/sessions":
			lists++
			snapshot := append([]api.Session{}, sessions...)
			first := lists == 1
			mu.Unlock()
			if first {
				close(firstListed)
				<-release
			}
			json.NewEncoder(w).Encode(snapshot)
		case r.Method == http.MethodPost && r.URL.Path == "/sessions":
			s := api.Session{ID: "s-new", GroomName: "Omar", BrideName: "Layla", Status: api.StatusPending}
			sessions = append(sessions, s)
			mu.Unlock()
			json.NewEncoder(w).Encode(s)
		default:
			mu.Unlock()
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	store := NewSessionStore(api.NewClient(srv.URL))

	refreshed := make(chan error, 1)
	go func() { refreshed <- store.FetchSessions(context.Background()) }()
	<-firstListed

	_, err := store.CreateSession(context.Background(), api.NewSession{GroomName: "Omar", BrideName: "Layla"})
	require.NoError(t, err)
	require.Len(t, store.Sessions(), 1)

	close(release)
	require.NoError(t, <-refreshed)

	got := store.Sessions()
	require.Len(t, got, 1, "stale refresh replaced a newer list")
	assert.Equal(t, "s-new", got[0].ID)
	assert.False(t, store.Loading())
}

func TestFetchSessionsFailureKeepsCache(t *testing.T) {
	f := &fakeBackend{sessions: []api.Session{{ID: "a"}}}
	store := NewSessionStore(newFake(t, f))
	require.NoError(t, store.FetchSessions(context.Background()))

	f.mu.Lock()
	f.listFails = true
	f.mu.Unlock()

	err := store.FetchSessions(context.Background())
	require.Error(t, err)
	assert.Equal(t, MsgFetchFailed, store.Err())
	assert.Len(t, store.Sessions(), 1)
	assert.False(t, store.Loading())
}

func TestCreateSessionDoesNotDuplicate(t *testing.T) {
	f := &fakeBackend{sessions: []api.Session{{ID: "a"}}}
	store := NewSessionStore(newFake(t, f))

	created, err := store.CreateSession(context.Background(), api.NewSession{GroomName: "Omar", BrideName: "Layla"})
	require.NoError(t, err)
	assert.Equal(t, "s-new", created.ID)
	assert.NotEmpty(t, created.Date)

	sessions := store.Sessions()
	assert.Len(t, sessions, 2)
	count := 0
	for _, s := range sessions {
		if s.ID == "s-new" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCreateSessionValidationSkipsNetwork(t *testing.T) {
	f := &fakeBackend{}
	store := NewSessionStore(newFake(t, f))

	_, err := store.CreateSession(context.Background(), api.NewSession{GroomName: "O", BrideName: "Layla"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Groom name must be at least 2 characters", ValidationMessage(err))
	assert.Zero(t, f.creates)
}

func TestCreateSessionInFlight(t *testing.T) {
	f := &fakeBackend{
		createGate: make(chan struct{}),
		createSeen: make(chan struct{}),
	}
	store := NewSessionStore(newFake(t, f))

	done := make(chan error, 1)
	go func() {
		_, err := store.CreateSession(context.Background(), api.NewSession{GroomName: "Omar", BrideName: "Layla"})
		done <- err
	}()
	<-f.createSeen

	_, err := store.CreateSession(context.Background(), api.NewSession{GroomName: "Omar", BrideName: "Layla"})
	assert.ErrorIs(t, err, ErrInFlight)
	assert.True(t, store.Loading())

	close(f.createGate)
	require.NoError(t, <-done)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 1, f.creates)
}

func TestUploadFailureKeepsCreatedSession(t *testing.T) {
	f := &fakeBackend{uploadErr: true}
	store := NewSessionStore(newFake(t, f))

	created, err := store.CreateSession(context.Background(), api.NewSession{GroomName: "Omar", BrideName: "Layla"})
	require.NoError(t, err)

	err = store.UploadScript(context.Background(), created.ID, "script.txt", strings.NewReader("hello"))
	require.Error(t, err)
	assert.Equal(t, "Unsupported file type", api.DetailOf(err))
	assert.Equal(t, MsgUploadFailed, store.Err())

	_, ok := store.Session(created.ID)
	assert.True(t, ok)
}

func TestUploadScriptTooLarge(t *testing.T) {
	store := NewSessionStore(newFake(t, &fakeBackend{}))

	big := strings.NewReader(strings.Repeat("x", MaxScriptBytes+1))
	err := store.UploadScript(context.Background(), "s1", "big.txt", big)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStartSessionLeavesStatus(t *testing.T) {
	f := &fakeBackend{sessions: []api.Session{{ID: "s1", Status: api.StatusReady}}}
	store := NewSessionStore(newFake(t, f))
	require.NoError(t, store.FetchSessions(context.Background()))

	tokens, err := store.StartSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "l", tokens.LawyerToken)

	s, _ := store.Session("s1")
	assert.Equal(t, api.StatusReady, s.Status)
}

func TestFetchReportFailureRecorded(t *testing.T) {
	store := NewSessionStore(newFake(t, &fakeBackend{}))

	_, err := store.FetchReport(context.Background(), "s1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrNotFound))
	assert.Equal(t, MsgReportFailed, store.Err())
}

func TestAnalyzeScriptMinimumLength(t *testing.T) {
	store := NewSessionStore(newFake(t, &fakeBackend{}))

	_, err := store.AnalyzeScript(context.Background(), "too short")
	assert.ErrorIs(t, err, ErrValidation)

	analysis, err := store.AnalyzeScript(context.Background(), strings.Repeat("Do you consent? ", 5))
	require.NoError(t, err)
	assert.Equal(t, "Formal", analysis.Tone)
}

func TestFilter(t *testing.T) {
	f := &fakeBackend{sessions: []api.Session{
		{ID: "s1", GroomName: "Omar", BrideName: "Layla"},
		{ID: "s2", GroomName: "Han", BrideName: "Leia"},
	}}
	store := NewSessionStore(newFake(t, f))
	require.NoError(t, store.FetchSessions(context.Background()))

	assert.Len(t, store.Filter(""), 2)
	got := store.Filter("LEI")
	require.Len(t, got, 1)
	assert.Equal(t, "s2", got[0].ID)
	assert.Len(t, store.Filter("s1"), 1)
	assert.Empty(t, store.Filter("nobody"))
}

func TestLoginCommitsAndPersists(t *testing.T) {
	p := &memPersister{}
	auth := NewAuthStore(newFake(t, &fakeBackend{}), p)

	require.NoError(t, auth.Login(context.Background(), "ann@firm.test", "pw"))

	st := auth.State()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "tok-1", st.Token)
	require.NotNil(t, st.User)
	assert.Equal(t, "Ann", st.User.Name)
	require.NotNil(t, p.rec)
	assert.Equal(t, "tok-1", p.rec.Token)
}

func TestLoginFailureAtMeRetainsNothing(t *testing.T) {
	p := &memPersister{}
	auth := NewAuthStore(newFake(t, &fakeBackend{meFails: true}), p)

	err := auth.Login(context.Background(), "ann@firm.test", "pw")
	require.ErrorIs(t, err, api.ErrUnauthorized)

	st := auth.State()
	assert.False(t, st.IsAuthenticated)
	assert.Empty(t, st.Token)
	assert.Nil(t, st.User)
	assert.Zero(t, p.saves)
	assert.Nil(t, p.rec)
}

func TestLoginValidation(t *testing.T) {
	auth := NewAuthStore(newFake(t, &fakeBackend{}), nil)

	assert.ErrorIs(t, auth.Login(context.Background(), "not-an-email", "pw"), ErrValidation)
	assert.ErrorIs(t, auth.Login(context.Background(), "ann@firm.test", ""), ErrValidation)
	assert.False(t, auth.IsAuthenticated())
}

func TestLogoutWithoutLogin(t *testing.T) {
	p := &memPersister{clearErr: errors.New("disk full")}
	auth := NewAuthStore(newFake(t, &fakeBackend{}), p)

	assert.NotPanics(t, auth.Logout)
	assert.False(t, auth.IsAuthenticated())
}

func TestLogoutClearsPersisted(t *testing.T) {
	store, err := db.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	auth := NewAuthStore(newFake(t, &fakeBackend{}), store)
	require.NoError(t, auth.Login(context.Background(), "ann@firm.test", "pw"))

	rec, err := store.LoadAuth()
	require.NoError(t, err)
	require.NotNil(t, rec)

	auth.Logout()
	assert.Empty(t, auth.Token())

	rec, err = store.LoadAuth()
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestLoadRestoresIdentity(t *testing.T) {
	p := &memPersister{rec: &db.AuthRecord{Token: "saved", Name: "Ann", Authenticated: true}}
	auth := NewAuthStore(newFake(t, &fakeBackend{}), p)

	require.NoError(t, auth.Load())
	assert.True(t, auth.IsAuthenticated())
	assert.Equal(t, "saved", auth.Token())
	assert.Equal(t, "Ann", auth.State().User.Name)
}

func TestLoadIgnoresUnauthenticatedRecord(t *testing.T) {
	p := &memPersister{rec: &db.AuthRecord{Token: "stale", Authenticated: false}}
	auth := NewAuthStore(newFake(t, &fakeBackend{}), p)

	require.NoError(t, auth.Load())
	assert.False(t, auth.IsAuthenticated())
	assert.Empty(t, auth.Token())
}

func TestRegisterDoesNotLogIn(t *testing.T) {
	auth := NewAuthStore(newFake(t, &fakeBackend{}), nil)

	require.NoError(t, auth.Register(context.Background(), "ann@firm.test", "pw", "Ann"))
	assert.False(t, auth.IsAuthenticated())

	err := auth.Register(context.Background(), "ann@firm.test", "pw", "A")
	assert.ErrorIs(t, err, ErrValidation)
}
