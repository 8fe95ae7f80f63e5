// Package api provides the REST client and wire types for the LexNova
// verification backend.
package api

// SessionStatus is the server-side lifecycle state of a session.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusReady     SessionStatus = "ready"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// Rank returns the position of s in pending < ready < active < completed.
// Unknown statuses rank below pending.
func (s SessionStatus) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusReady:
		return 1
	case StatusActive:
		return 2
	case StatusCompleted:
		return 3
	}
	return -1
}

// Voice styles accepted in AIConfig.
const (
	VoiceWarm          = "warm"
	VoiceAuthoritative = "authoritative"
	VoiceNeutral       = "neutral"
)

// Strictness levels accepted in AIConfig.
const (
	StrictnessLow  = "low"
	StrictnessHigh = "high"
)

// AIConfig tunes the agent's behavior for one session.
type AIConfig struct {
	VoiceStyle string `json:"voiceStyle"`
	Strictness string `json:"strictness"` // low = conversational, high = strict legal adherence
}

// DefaultAIConfig is what the create form starts with.
func DefaultAIConfig() AIConfig {
	return AIConfig{VoiceStyle: VoiceWarm, Strictness: StrictnessHigh}
}

// Session is one scheduled verification engagement.
type Session struct {
	ID             string          `json:"id"`
	GroomName      string          `json:"groomName"`
	BrideName      string          `json:"brideName"`
	Date           string          `json:"date"`
	Status         SessionStatus   `json:"status"`
	ScriptContent  string          `json:"scriptContent,omitempty"`
	ScriptAnalysis *ScriptAnalysis `json:"scriptAnalysis,omitempty"`
	AIConfig       *AIConfig       `json:"aiConfig,omitempty"`
	SessionCode    string          `json:"sessionCode,omitempty"`
}

// NewSession is the creation payload for POST /sessions.
type NewSession struct {
	GroomName string    `json:"groomName"`
	BrideName string    `json:"brideName"`
	Date      string    `json:"date"`
	AIConfig  *AIConfig `json:"aiConfig,omitempty"`
}

// User is the authenticated lawyer.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// StartTokens carries the per-role join tokens returned by
// POST /sessions/{id}/start. The backend has shipped two shapes: flat
// *_token fields and a nested tokens object; both decode here.
type StartTokens struct {
	GroomToken  string `json:"groom_token,omitempty"`
	BrideToken  string `json:"bride_token,omitempty"`
	LawyerToken string `json:"lawyer_token,omitempty"`

	Tokens *struct {
		Groom  string `json:"groom"`
		Bride  string `json:"bride"`
		Lawyer string `json:"lawyer"`
	} `json:"tokens,omitempty"`

	URL      string `json:"url,omitempty"`
	RoomName string `json:"roomName,omitempty"`
	Warning  string `json:"warning,omitempty"`
}

// normalize folds the nested token shape into the flat fields.
func (t *StartTokens) normalize() {
	if t.Tokens == nil {
		return
	}
	if t.GroomToken == "" {
		t.GroomToken = t.Tokens.Groom
	}
	if t.BrideToken == "" {
		t.BrideToken = t.Tokens.Bride
	}
	if t.LawyerToken == "" {
		t.LawyerToken = t.Tokens.Lawyer
	}
	t.Tokens = nil
}

// TranscriptEntry is one utterance in a session report.
type TranscriptEntry struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Speaker   string `json:"speaker"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	Flagged   bool   `json:"flagged,omitempty"`
}

// FraudAnalysis is the backend-computed risk summary.
type FraudAnalysis struct {
	RiskScore            int      `json:"riskScore"`            // 0-100, 100 is high risk
	VoiceMatchConfidence int      `json:"voiceMatchConfidence"` // 0-100
	CoercionDetected     bool     `json:"coercionDetected"`
	Notes                []string `json:"notes"`
}

// SessionReport is the post-session summary.
type SessionReport struct {
	SessionID         string            `json:"sessionId"`
	Duration          string            `json:"duration"`
	Transcript        []TranscriptEntry `json:"transcript"`
	FraudAnalysis     FraudAnalysis     `json:"fraudAnalysis"`
	Certified         bool              `json:"certified"`
	CertificationDate string            `json:"certificationDate,omitempty"`
}

// AnalyzeScriptRequest is the body of POST /analyze-script.
type AnalyzeScriptRequest struct {
	ScriptContent string `json:"script_content"`
}

// ScriptAnalysis is the agent's summary of a ceremony script.
type ScriptAnalysis struct {
	Tone                     string   `json:"tone"`
	QuestionCount            int      `json:"questionCount"`
	Complexity               string   `json:"complexity"`
	Summary                  string   `json:"summary"`
	EstimatedDurationMinutes int      `json:"estimated_duration_minutes"`
	KeyQuestions             []string `json:"key_questions"`
}

// Participant types accepted by the public join flow.
const (
	ParticipantGroom = "groom"
	ParticipantBride = "bride"
)

// JoinRequest is the body of POST /client/join.
type JoinRequest struct {
	SessionCode     string `json:"session_code"`
	ParticipantName string `json:"participant_name"`
	ParticipantType string `json:"participant_type"`
}

// JoinResult is returned by POST /client/join.
type JoinResult struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id,omitempty"`
	RoomName  string `json:"room_name,omitempty"`
	GroomName string `json:"groom_name,omitempty"`
	BrideName string `json:"bride_name,omitempty"`
}

// ErrorResponse is the error body shape. FastAPI-style backends use
// detail; others use error.
type ErrorResponse struct {
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}
