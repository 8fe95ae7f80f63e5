package devserver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/lexnova/lexnova/internal/api"
	"github.com/lexnova/lexnova/internal/call"
	"github.com/lexnova/lexnova/internal/state"
	"github.com/lexnova/lexnova/internal/transport/relay"
)

const userKey = "userID"

// Handler serves the REST surface and the relay endpoint.
type Handler struct {
	store     *Store
	tokens    *Issuer
	hub       *Hub
	stepDelay time.Duration
	upgrader  websocket.Upgrader
}

// NewHandler creates a Handler.
func NewHandler(store *Store, tokens *Issuer, hub *Hub, stepDelay time.Duration) *Handler {
	return &Handler{
		store:     store,
		tokens:    tokens,
		hub:       hub,
		stepDelay: stepDelay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes mounts the REST API under /api and the relay at /rtc.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api", h.idempotent)
	g.POST("/auth/login", h.Login)
	g.POST("/auth/register", h.Register)
	g.POST("/client/join", h.Join)

	authed := g.Group("", h.requireAuth)
	authed.GET("/auth/me", h.Me)
	authed.GET("/sessions", h.ListSessions)
	authed.POST("/sessions", h.CreateSession)
	authed.POST("/sessions/:id/script", h.UploadScript)
	authed.POST("/sessions/:id/start", h.StartSession)
	authed.GET("/sessions/:id/report", h.GetReport)
	authed.POST("/sessions/:id/certify", h.Certify)
	authed.POST("/analyze-script", h.AnalyzeScript)

	e.GET("/rtc", h.RTC)
}

func detail(c echo.Context, status int, msg string) error {
	return c.JSON(status, api.ErrorResponse{Detail: msg})
}

// requireAuth checks the bearer token and stores the user id.
func (h *Handler) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			return detail(c, http.StatusUnauthorized, "Not authenticated")
		}
		claims, err := h.tokens.Verify(token)
		if err != nil || claims["typ"] != "access" {
			return detail(c, http.StatusUnauthorized, "Could not validate credentials")
		}
		sub, _ := claims.GetSubject()
		c.Set(userKey, sub)
		return next(c)
	}
}

func userID(c echo.Context) string {
	id, _ := c.Get(userKey).(string)
	return id
}

type capture struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *capture) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *capture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// idempotent replays the stored response for a repeated Idempotency-Key.
func (h *Handler) idempotent(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		key := req.Header.Get(api.IdempotencyHeader)
		if key == "" || req.Method != http.MethodPost {
			return next(c)
		}
		scope := req.URL.Path + "|" + key
		if rec, ok := h.store.replay(scope); ok {
			return c.Blob(rec.status, echo.MIMEApplicationJSON, rec.body)
		}

		w := &capture{ResponseWriter: c.Response().Writer, status: http.StatusOK}
		c.Response().Writer = w
		if err := next(c); err != nil {
			return err
		}
		if w.status < http.StatusInternalServerError {
			h.store.remember(scope, idemRecord{status: w.status, body: w.buf.Bytes()})
		}
		return nil
	}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c echo.Context) error {
	var req api.LoginRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "invalid request body")
	}
	u, ok := h.store.Authenticate(req.Email, req.Password)
	if !ok {
		return detail(c, http.StatusUnauthorized, "Incorrect email or password")
	}
	token, err := h.tokens.AccessToken(u.ID)
	if err != nil {
		log.Printf("ERROR: mint access token: %v", err)
		return detail(c, http.StatusInternalServerError, "failed to issue token")
	}
	return c.JSON(http.StatusOK, api.LoginResponse{AccessToken: token, TokenType: "bearer"})
}

// Register handles POST /auth/register.
func (h *Handler) Register(c echo.Context) error {
	var req api.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "invalid request body")
	}
	if err := state.ValidateRegistration(req.Email, req.Password, req.Name); err != nil {
		return detail(c, http.StatusUnprocessableEntity, state.ValidationMessage(err))
	}
	u, err := h.store.Register(req.Email, req.Password, req.Name)
	if errors.Is(err, ErrExists) {
		return detail(c, http.StatusBadRequest, "Email already registered")
	}
	if err != nil {
		return detail(c, http.StatusInternalServerError, "failed to register")
	}
	return c.JSON(http.StatusCreated, u)
}

// Me handles GET /auth/me.
func (h *Handler) Me(c echo.Context) error {
	u, ok := h.store.User(userID(c))
	if !ok {
		return detail(c, http.StatusUnauthorized, "User no longer exists")
	}
	return c.JSON(http.StatusOK, u)
}

// ListSessions handles GET /sessions.
func (h *Handler) ListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Sessions(userID(c)))
}

// CreateSession handles POST /sessions.
func (h *Handler) CreateSession(c echo.Context) error {
	var req api.NewSession
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "invalid request body")
	}
	if err := state.ValidateNewSession(req); err != nil {
		return detail(c, http.StatusUnprocessableEntity, state.ValidationMessage(err))
	}
	sess, err := h.store.CreateSession(userID(c), req)
	if err != nil {
		log.Printf("ERROR: create session: %v", err)
		return detail(c, http.StatusInternalServerError, "failed to create session")
	}
	return c.JSON(http.StatusCreated, sess)
}

// UploadScript handles POST /sessions/:id/script.
func (h *Handler) UploadScript(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return detail(c, http.StatusBadRequest, "file is required")
	}
	if fh.Size > state.MaxScriptBytes {
		return detail(c, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 10MB.")
	}
	f, err := fh.Open()
	if err != nil {
		return detail(c, http.StatusBadRequest, "unreadable file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, state.MaxScriptBytes))
	if err != nil {
		return detail(c, http.StatusBadRequest, "unreadable file")
	}

	if err := h.store.SetScript(userID(c), c.Param("id"), string(data)); err != nil {
		return detail(c, http.StatusNotFound, "Session not found")
	}
	return c.NoContent(http.StatusOK)
}

func roomName(sessionID string) string {
	if len(sessionID) > 8 {
		sessionID = sessionID[:8]
	}
	return "lexnova-" + sessionID
}

func rtcURL(c echo.Context) string {
	scheme := "ws"
	if c.Scheme() == "https" {
		scheme = "wss"
	}
	return scheme + "://" + c.Request().Host + "/rtc"
}

// StartSession handles POST /sessions/:id/start.
func (h *Handler) StartSession(c echo.Context) error {
	uid := userID(c)
	sess, err := h.store.Start(uid, c.Param("id"))
	if err != nil {
		return detail(c, http.StatusNotFound, "Session not found")
	}
	lawyer, _ := h.store.User(uid)
	room := roomName(sess.ID)
	h.hub.Open(room, sess.ID, h.stepDelay, h.store.Complete)

	var tokens api.StartTokens
	for _, t := range []struct {
		dst      *string
		identity string
		name     string
		role     call.Role
	}{
		{&tokens.GroomToken, "groom-" + sess.ID[:4], sess.GroomName, call.RoleGroom},
		{&tokens.BrideToken, "bride-" + sess.ID[:4], sess.BrideName, call.RoleBride},
		{&tokens.LawyerToken, "lawyer-" + uid, lawyer.Name, call.RoleLawyer},
	} {
		*t.dst, err = h.tokens.JoinToken(room, t.identity, t.name, string(t.role))
		if err != nil {
			log.Printf("ERROR: mint join token: %v", err)
			return detail(c, http.StatusInternalServerError, "failed to issue tokens")
		}
	}
	tokens.URL = rtcURL(c)
	tokens.RoomName = room
	return c.JSON(http.StatusOK, tokens)
}

// GetReport handles GET /sessions/:id/report.
func (h *Handler) GetReport(c echo.Context) error {
	rep, err := h.store.Report(userID(c), c.Param("id"))
	if err != nil {
		return detail(c, http.StatusNotFound, "Report not available yet")
	}
	return c.JSON(http.StatusOK, rep)
}

// Certify handles POST /sessions/:id/certify.
func (h *Handler) Certify(c echo.Context) error {
	rep, err := h.store.Certify(userID(c), c.Param("id"))
	if err != nil {
		return detail(c, http.StatusNotFound, "Report not available yet")
	}
	return c.JSON(http.StatusOK, rep)
}

// AnalyzeScript handles POST /analyze-script.
func (h *Handler) AnalyzeScript(c echo.Context) error {
	var req api.AnalyzeScriptRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "invalid request body")
	}
	if len(strings.TrimSpace(req.ScriptContent)) < state.MinScriptLength {
		return detail(c, http.StatusUnprocessableEntity,
			fmt.Sprintf("Script must be at least %d characters", state.MinScriptLength))
	}
	return c.JSON(http.StatusOK, analyzeScript(req.ScriptContent))
}

// analyzeScript is a fixed heuristic summary; the production backend runs
// a language model here.
func analyzeScript(content string) api.ScriptAnalysis {
	questions := []string{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasSuffix(line, "?") {
			questions = append(questions, line)
		}
	}
	words := len(strings.Fields(content))

	complexity := "low"
	switch {
	case words > 400:
		complexity = "high"
	case words > 150:
		complexity = "medium"
	}
	tone := "formal"
	if lower := strings.ToLower(content); strings.Contains(lower, "love") || strings.Contains(lower, "joy") {
		tone = "warm"
	}

	return api.ScriptAnalysis{
		Tone:                     tone,
		QuestionCount:            len(questions),
		Complexity:               complexity,
		Summary:                  fmt.Sprintf("Ceremony script of %d words with %d consent question(s).", words, len(questions)),
		EstimatedDurationMinutes: max(5, words/130+len(questions)),
		KeyQuestions:             questions[:min(len(questions), 5)],
	}
}

// Join handles the public POST /client/join.
func (h *Handler) Join(c echo.Context) error {
	var req api.JoinRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "invalid request body")
	}
	name := strings.TrimSpace(req.ParticipantName)
	if req.SessionCode == "" || name == "" {
		return detail(c, http.StatusUnprocessableEntity, "Please fill in all fields")
	}
	role := call.Role(req.ParticipantType)
	if role != call.RoleGroom && role != call.RoleBride {
		return detail(c, http.StatusUnprocessableEntity, "participant_type must be groom or bride")
	}

	sess, err := h.store.SessionByCode(req.SessionCode)
	switch {
	case errors.Is(err, ErrNotStarted):
		return detail(c, http.StatusConflict, "Session has not started yet")
	case err != nil:
		return detail(c, http.StatusNotFound, "Invalid session code")
	}

	room := roomName(sess.ID)
	h.hub.Open(room, sess.ID, h.stepDelay, h.store.Complete)
	identity := string(role) + "-" + uuid.NewString()[:8]
	token, err := h.tokens.JoinToken(room, identity, name, string(role))
	if err != nil {
		log.Printf("ERROR: mint join token: %v", err)
		return detail(c, http.StatusInternalServerError, "failed to issue token")
	}
	return c.JSON(http.StatusOK, api.JoinResult{
		Token:     token,
		SessionID: sess.ID,
		RoomName:  room,
		GroomName: sess.GroomName,
		BrideName: sess.BrideName,
	})
}

// RTC upgrades to the relay protocol for the room named in the join token.
func (h *Handler) RTC(c echo.Context) error {
	claims, err := h.tokens.Verify(c.QueryParam(relay.TokenParam))
	if err != nil {
		return detail(c, http.StatusUnauthorized, "invalid join token")
	}
	video, _ := claims["video"].(map[string]any)
	name, _ := video["room"].(string)
	room, ok := h.hub.Room(name)
	if !ok {
		return detail(c, http.StatusNotFound, "room not found")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}
	identity, _ := claims.GetSubject()
	display, _ := claims["name"].(string)
	metadata, _ := claims["metadata"].(string)
	room.Serve(conn, identity, display, metadata)
	return nil
}
