package call

import (
	"encoding/json"
	"strings"
)

// Role is what a participant is in the ceremony.
type Role string

const (
	RoleUnknown Role = ""
	RoleAgent   Role = "agent"
	RoleLawyer  Role = "lawyer"
	RoleGroom   Role = "groom"
	RoleBride   Role = "bride"
)

// AgentSenderName is the sender the agent uses on transcript messages.
const AgentSenderName = "AI Officiant"

// Participant is a remote member of the room.
type Participant struct {
	Identity string
	Name     string
	Role     Role
}

// DisplayName returns the name, falling back to the identity.
func (p Participant) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Identity
}

type participantMetadata struct {
	Role string `json:"role"`
	Type string `json:"type"`
}

// roleFromMetadata reads {"role": ...} or {"type": ...}. Empty or
// unparseable metadata yields RoleUnknown.
func roleFromMetadata(metadata string) Role {
	if strings.TrimSpace(metadata) == "" {
		return RoleUnknown
	}
	var md participantMetadata
	if err := json.Unmarshal([]byte(metadata), &md); err != nil {
		return RoleUnknown
	}
	v := md.Role
	if v == "" {
		v = md.Type
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "agent", "bot", "ai":
		return RoleAgent
	case "lawyer":
		return RoleLawyer
	case "groom":
		return RoleGroom
	case "bride":
		return RoleBride
	}
	return RoleUnknown
}

// ResolveRole decides a participant's role once, at join time. Metadata
// wins; when it is silent an identity starting with "agent" or a display
// name containing "AI" marks the agent.
func ResolveRole(identity, name, metadata string) Role {
	if role := roleFromMetadata(metadata); role != RoleUnknown {
		return role
	}
	if strings.HasPrefix(identity, "agent") || strings.Contains(name, "AI") {
		return RoleAgent
	}
	return RoleUnknown
}

// SenderLabel is the short label shown next to a transcript line: BOT for
// the agent, otherwise the upper-cased first word of the sender.
func SenderLabel(sender string, fromAgent bool) string {
	if fromAgent {
		return "BOT"
	}
	fields := strings.Fields(sender)
	if len(fields) == 0 {
		return strings.ToUpper(sender)
	}
	return strings.ToUpper(fields[0])
}
