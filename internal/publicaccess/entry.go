// Package publicaccess manages member-only protection of content branches.
package publicaccess

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no entry matches.
var ErrNotFound = errors.New("public access entry not found")

// Rule types.
const (
	RuleMemberUsername = "MemberUsername"
	RuleMemberRole     = "MemberRole"
)

// Rule grants access to a member or a member role.
type Rule struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

// Entry protects the branch rooted at ProtectedNodeID.
type Entry struct {
	Key             uuid.UUID `yaml:"key"`
	ProtectedNodeID int       `yaml:"protected_node_id"`
	LoginNodeID     int       `yaml:"login_node_id"`
	NoAccessNodeID  int       `yaml:"no_access_node_id"`
	Rules           []Rule    `yaml:"rules"`
	CreatedAt       time.Time `yaml:"-"`
	UpdatedAt       time.Time `yaml:"-"`
}

// RoleValues returns the values of all role rules.
func (e *Entry) RoleValues() []string {
	var out []string
	for _, r := range e.Rules {
		if r.Type == RuleMemberRole {
			out = append(out, r.Value)
		}
	}
	return out
}
