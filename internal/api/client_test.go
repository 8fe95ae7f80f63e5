package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, WithTokenSource(func() string { return "tok-1" }))
}

func TestListSessionsSendsBearerToken(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/sessions", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get(IdempotencyHeader))
		json.NewEncoder(w).Encode([]Session{
			{ID: "s1", GroomName: "Omar", BrideName: "Layla", Status: StatusPending},
		})
	})

	sessions, err := client.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
	assert.Equal(t, StatusPending, sessions[0].Status)
}

func TestListSessionsNullBodyIsEmpty(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	})

	sessions, err := client.ListSessions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}

func TestErrorDetailIsSurfaced(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Invalid session code"}`))
	})

	_, err := client.Join(context.Background(), JoinRequest{SessionCode: "ABC123"})
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid session code", DetailOf(err))
}

func TestErrorFieldFallback(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	})

	_, err := client.GetReport(context.Background(), "s1")
	assert.Equal(t, "boom", DetailOf(err))
}

func TestUnauthorizedMatchesSentinel(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Me(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMutationsCarryDistinctIdempotencyKeys(t *testing.T) {
	var mu sync.Mutex
	var keys []string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get(IdempotencyHeader))
		mu.Unlock()
		json.NewEncoder(w).Encode(Session{ID: "s1"})
	})

	_, err := client.CreateSession(context.Background(), NewSession{GroomName: "Omar", BrideName: "Layla"})
	require.NoError(t, err)
	_, err = client.CreateSession(context.Background(), NewSession{GroomName: "Omar", BrideName: "Layla"})
	require.NoError(t, err)

	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.NotEmpty(t, keys[1])
	assert.NotEqual(t, keys[0], keys[1])
}

func TestCreateSessionPayload(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Omar", body["groomName"])
		assert.Equal(t, "Layla", body["brideName"])
		cfg := body["aiConfig"].(map[string]any)
		assert.Equal(t, "warm", cfg["voiceStyle"])
		assert.Equal(t, "high", cfg["strictness"])
		json.NewEncoder(w).Encode(Session{ID: "new-1", GroomName: "Omar", BrideName: "Layla", Status: StatusPending})
	})

	cfg := DefaultAIConfig()
	s, err := client.CreateSession(context.Background(), NewSession{GroomName: "Omar", BrideName: "Layla", AIConfig: &cfg})
	require.NoError(t, err)
	assert.Equal(t, "new-1", s.ID)
}

func TestUploadScriptMultipart(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/s1/script", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get(IdempotencyHeader))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "script.txt", header.Filename)
		assert.Equal(t, "Do you accept?", string(data))
	})

	err := client.UploadScript(context.Background(), "s1", "script.txt", strings.NewReader("Do you accept?"))
	require.NoError(t, err)
}

func TestStartSessionFlatTokens(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"groom_token":"g","bride_token":"b","lawyer_token":"l"}`))
	})

	tokens, err := client.StartSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "g", tokens.GroomToken)
	assert.Equal(t, "b", tokens.BrideToken)
	assert.Equal(t, "l", tokens.LawyerToken)
}

func TestStartSessionNestedTokens(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tokens":{"groom":"g","bride":"b","lawyer":"l"},"url":"ws://rtc","roomName":"room-1"}`))
	})

	tokens, err := client.StartSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "g", tokens.GroomToken)
	assert.Equal(t, "l", tokens.LawyerToken)
	assert.Equal(t, "ws://rtc", tokens.URL)
	assert.Nil(t, tokens.Tokens)
}

func TestJoinSendsNoAuthorization(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var req JoinRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ABC123", req.SessionCode)
		assert.Equal(t, ParticipantBride, req.ParticipantType)
		json.NewEncoder(w).Encode(JoinResult{Token: "join-tok", SessionID: "s1"})
	})

	res, err := client.Join(context.Background(), JoinRequest{
		SessionCode:     "ABC123",
		ParticipantName: "Layla Haddad",
		ParticipantType: ParticipantBride,
	})
	require.NoError(t, err)
	assert.Equal(t, "join-tok", res.Token)
}

func TestLoginRejectsEmptyToken(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := client.Login(context.Background(), "a@b.co", "pw")
	assert.Error(t, err)
}

func TestWithTokenOverridesSource(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer other", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(User{ID: "u1", Email: "a@b.co", Name: "Ann"})
	})

	user, err := client.WithToken("other").Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ann", user.Name)
}

func TestStatusRank(t *testing.T) {
	assert.Less(t, StatusPending.Rank(), StatusReady.Rank())
	assert.Less(t, StatusReady.Rank(), StatusActive.Rank())
	assert.Less(t, StatusActive.Rank(), StatusCompleted.Rank())
	assert.Equal(t, -1, SessionStatus("archived").Rank())
}
