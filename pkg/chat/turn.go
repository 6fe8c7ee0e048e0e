// Package chat defines the core conversational data unit: a Turn with a
// closed role variant. Turns are immutable once created and are owned by
// the session they belong to.
package chat

import (
	"encoding/json"
	"fmt"
)

// Role identifies who produced a turn. It is a closed set; free-form role
// strings are rejected at the JSON boundary.
type Role string

const (
	// RoleUser is a turn submitted by the caller.
	RoleUser Role = "user"

	// RoleAssistant is a reply produced by the dialogue engine.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// UnmarshalJSON decodes a role and rejects anything outside the closed set.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	role := Role(s)
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", s)
	}
	*r = role
	return nil
}

// Turn is one message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// User builds a user turn.
func User(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// Assistant builds an assistant turn.
func Assistant(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}
