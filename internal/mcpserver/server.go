// Package mcpserver exposes the lawyer's sessions, reports, and script
// analysis as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lexnova/lexnova/internal/joincode"
	"github.com/lexnova/lexnova/internal/report"
	"github.com/lexnova/lexnova/internal/state"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Handlers implements the tool calls against the session store.
type Handlers struct {
	sessions *state.SessionStore
}

// New builds the MCP server with every tool registered.
func New(sessions *state.SessionStore) *server.MCPServer {
	h := &Handlers{sessions: sessions}
	s := server.NewMCPServer("lexnova", Version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List the lawyer's verification sessions, optionally filtered by name or id"),
		mcp.WithString("query", mcp.Description("Case-insensitive filter on groom name, bride name, or session id")),
	), h.ListSessions)

	s.AddTool(mcp.NewTool("get_session_report",
		mcp.WithDescription("Fetch the post-session report with fraud analysis and transcript"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
	), h.GetSessionReport)

	s.AddTool(mcp.NewTool("analyze_script",
		mcp.WithDescription("Summarize a ceremony script: tone, complexity, and key questions"),
		mcp.WithString("script_content", mcp.Required(), mcp.Description("Full script text, at least 50 characters")),
	), h.AnalyzeScript)

	s.AddTool(mcp.NewTool("format_join_code",
		mcp.WithDescription("Normalize a session join code and render it as ABC-123"),
		mcp.WithString("code", mcp.Required(), mcp.Description("Code as typed by the participant")),
	), h.FormatJoinCode)

	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(sessions *state.SessionStore) error {
	return server.ServeStdio(New(sessions))
}

// ListSessions handles list_sessions.
func (h *Handlers) ListSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.sessions.FetchSessions(ctx); err != nil {
		return mcp.NewToolResultErrorFromErr(state.MsgFetchFailed, err), nil
	}
	return jsonResult(h.sessions.Filter(req.GetString("query", "")))
}

type reportResult struct {
	SessionID         string   `json:"sessionId"`
	Duration          string   `json:"duration"`
	RiskScore         int      `json:"riskScore"`
	RiskBand          string   `json:"riskBand"`
	VoiceMatch        int      `json:"voiceMatchConfidence"`
	CoercionDetected  bool     `json:"coercionDetected"`
	Notes             []string `json:"notes"`
	FlaggedLines      int      `json:"flaggedLines"`
	TranscriptLines   int      `json:"transcriptLines"`
	Certified         bool     `json:"certified"`
	CertificationDate string   `json:"certificationDate,omitempty"`
}

// GetSessionReport handles get_session_report.
func (h *Handlers) GetSessionReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rep, err := h.sessions.FetchReport(ctx, id)
	if err != nil {
		return mcp.NewToolResultErrorFromErr(state.MsgReportFailed, err), nil
	}

	flagged := 0
	for _, e := range rep.Transcript {
		if e.Flagged {
			flagged++
		}
	}
	fa := rep.FraudAnalysis
	return jsonResult(reportResult{
		SessionID:         rep.SessionID,
		Duration:          rep.Duration,
		RiskScore:         fa.RiskScore,
		RiskBand:          string(report.BandFor(fa.RiskScore)),
		VoiceMatch:        fa.VoiceMatchConfidence,
		CoercionDetected:  fa.CoercionDetected,
		Notes:             fa.Notes,
		FlaggedLines:      flagged,
		TranscriptLines:   len(rep.Transcript),
		Certified:         rep.Certified,
		CertificationDate: rep.CertificationDate,
	})
}

// AnalyzeScript handles analyze_script.
func (h *Handlers) AnalyzeScript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("script_content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	analysis, err := h.sessions.AnalyzeScript(ctx, content)
	if err != nil {
		return mcp.NewToolResultError(errorText(err, state.MsgAnalyzeFailed)), nil
	}
	return jsonResult(analysis)
}

// FormatJoinCode handles format_join_code.
func (h *Handlers) FormatJoinCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	code := joincode.Normalize(raw)
	if !joincode.Valid(code) {
		return mcp.NewToolResultError(fmt.Sprintf("%q is not a valid %d-character session code", raw, joincode.Length)), nil
	}
	return mcp.NewToolResultText(joincode.Format(code)), nil
}

func errorText(err error, fallback string) string {
	if msg := state.ValidationMessage(err); msg != err.Error() {
		return msg
	}
	return fmt.Sprintf("%s: %v", fallback, err)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
