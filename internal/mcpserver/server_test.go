package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lexnova/lexnova/internal/api"
	"github.com/lexnova/lexnova/internal/state"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlers(t *testing.T) *Handlers {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]api.Session{
			{ID: "s1", GroomName: "Omar Haddad", BrideName: "Layla Nasser", Status: api.StatusPending},
			{ID: "s2", GroomName: "Karim Saleh", BrideName: "Rana Aziz", Status: api.StatusCompleted},
		})
	})
	mux.HandleFunc("GET /sessions/{id}/report", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "s2" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Session not found"}`))
			return
		}
		json.NewEncoder(w).Encode(api.SessionReport{
			SessionID: "s2",
			Duration:  "14:32",
			Transcript: []api.TranscriptEntry{
				{ID: "t1", Speaker: "Karim", Text: "I do."},
				{ID: "t2", Speaker: "Rana", Text: "Yes...", Flagged: true},
			},
			FraudAnalysis: api.FraudAnalysis{RiskScore: 35, VoiceMatchConfidence: 91, Notes: []string{"hesitation"}},
		})
	})
	mux.HandleFunc("POST /analyze-script", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.ScriptAnalysis{Tone: "formal", QuestionCount: 4, Complexity: "medium"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &Handlers{sessions: state.NewSessionStore(api.NewClient(srv.URL))}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return text.Text
}

func TestListSessionsFilters(t *testing.T) {
	h := newHandlers(t)
	res, err := h.ListSessions(context.Background(), callRequest(map[string]any{"query": "layla"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var sessions []api.Session
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
}

func TestGetSessionReportSummarizes(t *testing.T) {
	h := newHandlers(t)
	res, err := h.GetSessionReport(context.Background(), callRequest(map[string]any{"session_id": "s2"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var out reportResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, "medium", out.RiskBand)
	assert.Equal(t, 1, out.FlaggedLines)
	assert.Equal(t, 2, out.TranscriptLines)
}

func TestGetSessionReportErrors(t *testing.T) {
	h := newHandlers(t)

	res, err := h.GetSessionReport(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.GetSessionReport(context.Background(), callRequest(map[string]any{"session_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestAnalyzeScriptValidatesLength(t *testing.T) {
	h := newHandlers(t)
	res, err := h.AnalyzeScript(context.Background(), callRequest(map[string]any{"script_content": "too short"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "at least 50 characters")
}

func TestAnalyzeScript(t *testing.T) {
	h := newHandlers(t)
	script := "Do you, Karim, take Rana as your wife, freely and without any pressure from anyone?"
	res, err := h.AnalyzeScript(context.Background(), callRequest(map[string]any{"script_content": script}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), `"tone": "formal"`)
}

func TestFormatJoinCode(t *testing.T) {
	h := newHandlers(t)
	res, err := h.FormatJoinCode(context.Background(), callRequest(map[string]any{"code": "ab1-c2d"}))
	require.NoError(t, err)
	assert.Equal(t, "AB1-C2D", resultText(t, res))

	res, err = h.FormatJoinCode(context.Background(), callRequest(map[string]any{"code": "ab1"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestNewBuildsServer(t *testing.T) {
	assert.NotNil(t, New(state.NewSessionStore(api.NewClient("http://127.0.0.1:0"))))
}
