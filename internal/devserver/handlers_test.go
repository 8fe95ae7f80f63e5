package devserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexnova/lexnova/internal/api"
)

func newTestHandler() *Handler {
	return NewHandler(NewStore(), NewIssuer("test-secret"), NewHub(), time.Millisecond)
}

func jsonContext(e *echo.Echo, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h := newTestHandler()
	_, err := h.store.Register("ann@firm.law", "secret1", "Ann Counsel")
	require.NoError(t, err)

	c, rec := jsonContext(echo.New(), http.MethodPost, "/api/auth/login", `{"email":"ann@firm.law","password":"wrong"}`)
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect email or password", decodeDetail(t, rec))
}

func TestLoginIssuesAccessToken(t *testing.T) {
	h := newTestHandler()
	u, err := h.store.Register("ann@firm.law", "secret1", "Ann Counsel")
	require.NoError(t, err)

	c, rec := jsonContext(echo.New(), http.MethodPost, "/api/auth/login", `{"email":"ANN@firm.law","password":"secret1"}`)
	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	claims, err := h.tokens.Verify(resp.AccessToken)
	require.NoError(t, err)
	sub, _ := claims.GetSubject()
	assert.Equal(t, u.ID, sub)
	assert.Equal(t, "access", claims["typ"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newTestHandler()
	e := echo.New()
	body := `{"email":"ann@firm.law","password":"secret1","name":"Ann Counsel"}`

	c, rec := jsonContext(e, http.MethodPost, "/api/auth/register", body)
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, rec = jsonContext(e, http.MethodPost, "/api/auth/register", body)
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", decodeDetail(t, rec))
}

func TestRegisterValidates(t *testing.T) {
	h := newTestHandler()
	c, rec := jsonContext(echo.New(), http.MethodPost, "/api/auth/register", `{"email":"nope","password":"secret1","name":"Ann"}`)
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NotEmpty(t, decodeDetail(t, rec))
}

func TestRequireAuth(t *testing.T) {
	h := newTestHandler()
	e := echo.New()
	next := func(c echo.Context) error {
		return c.String(http.StatusOK, userID(c))
	}

	c, rec := jsonContext(e, http.MethodGet, "/api/sessions", "")
	require.NoError(t, h.requireAuth(next)(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	join, err := h.tokens.JoinToken("room", "groom-1", "Omar", "groom")
	require.NoError(t, err)
	c, rec = jsonContext(e, http.MethodGet, "/api/sessions", "")
	c.Request().Header.Set("Authorization", "Bearer "+join)
	require.NoError(t, h.requireAuth(next)(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "join tokens are not bearer tokens")

	access, err := h.tokens.AccessToken("user-1")
	require.NoError(t, err)
	c, rec = jsonContext(e, http.MethodGet, "/api/sessions", "")
	c.Request().Header.Set("Authorization", "Bearer "+access)
	require.NoError(t, h.requireAuth(next)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestIdempotentReplaysResponse(t *testing.T) {
	h := newTestHandler()
	e := echo.New()
	calls := 0
	next := func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusCreated, map[string]int{"n": calls})
	}

	for range 2 {
		c, rec := jsonContext(e, http.MethodPost, "/api/sessions", `{}`)
		c.Request().Header.Set(api.IdempotencyHeader, "key-1")
		require.NoError(t, h.idempotent(next)(c))
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"n":1}`, rec.Body.String())
	}
	assert.Equal(t, 1, calls)

	c, rec := jsonContext(e, http.MethodPost, "/api/sessions", `{}`)
	c.Request().Header.Set(api.IdempotencyHeader, "key-2")
	require.NoError(t, h.idempotent(next)(c))
	assert.JSONEq(t, `{"n":2}`, rec.Body.String())
}

func TestAnalyzeScriptTooShort(t *testing.T) {
	h := newTestHandler()
	c, rec := jsonContext(echo.New(), http.MethodPost, "/api/analyze-script", `{"script_content":"Do you?"}`)
	require.NoError(t, h.AnalyzeScript(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAnalyzeScriptHeuristic(t *testing.T) {
	script := "We gather today with love and joy.\n" +
		"Groom, do you accept this marriage freely?\n" +
		"Bride, do you accept this marriage freely?\n"
	got := analyzeScript(script)

	assert.Equal(t, "warm", got.Tone)
	assert.Equal(t, 2, got.QuestionCount)
	assert.Equal(t, "low", got.Complexity)
	assert.Equal(t, 5, got.EstimatedDurationMinutes)
	assert.Equal(t, []string{
		"Groom, do you accept this marriage freely?",
		"Bride, do you accept this marriage freely?",
	}, got.KeyQuestions)
}

func TestJoinErrors(t *testing.T) {
	h := newTestHandler()
	u, err := h.store.Register("ann@firm.law", "secret1", "Ann Counsel")
	require.NoError(t, err)
	sess, err := h.store.CreateSession(u.ID, api.NewSession{GroomName: "Omar", BrideName: "Layla"})
	require.NoError(t, err)
	e := echo.New()

	tests := []struct {
		name   string
		body   string
		status int
		detail string
	}{
		{"missing name", `{"session_code":"` + sess.SessionCode + `","participant_type":"groom"}`, http.StatusUnprocessableEntity, "Please fill in all fields"},
		{"bad role", `{"session_code":"` + sess.SessionCode + `","participant_name":"Omar","participant_type":"lawyer"}`, http.StatusUnprocessableEntity, "participant_type must be groom or bride"},
		{"unknown code", `{"session_code":"ZZZZZZ","participant_name":"Omar","participant_type":"groom"}`, http.StatusNotFound, "Invalid session code"},
		{"not started", `{"session_code":"` + sess.SessionCode + `","participant_name":"Omar","participant_type":"groom"}`, http.StatusConflict, "Session has not started yet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := jsonContext(e, http.MethodPost, "/api/client/join", tt.body)
			require.NoError(t, h.Join(c))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.detail, decodeDetail(t, rec))
		})
	}
}

func TestJoinStartedSession(t *testing.T) {
	h := newTestHandler()
	u, err := h.store.Register("ann@firm.law", "secret1", "Ann Counsel")
	require.NoError(t, err)
	sess, err := h.store.CreateSession(u.ID, api.NewSession{GroomName: "Omar", BrideName: "Layla"})
	require.NoError(t, err)
	_, err = h.store.Start(u.ID, sess.ID)
	require.NoError(t, err)

	body := `{"session_code":"` + strings.ToLower(sess.SessionCode) + `","participant_name":"Layla","participant_type":"bride"}`
	c, rec := jsonContext(echo.New(), http.MethodPost, "/api/client/join", body)
	require.NoError(t, h.Join(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var res api.JoinResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, sess.ID, res.SessionID)
	assert.Equal(t, roomName(sess.ID), res.RoomName)
	_, ok := h.hub.Room(res.RoomName)
	assert.True(t, ok)

	claims, err := h.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "Layla", claims["name"])
	assert.JSONEq(t, `{"role":"bride"}`, claims["metadata"].(string))
}
