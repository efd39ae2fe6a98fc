package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForRole(t *testing.T) {
	assert.Equal(t, LevelAdmin, LevelForRole(RoleAdmin))
	assert.Equal(t, LevelCore, LevelForRole(RoleCore))
	assert.Equal(t, LevelMember, LevelForRole(RoleMember))
	assert.Equal(t, LevelNone, LevelForRole(RoleTinkerer))
	assert.Equal(t, LevelNone, LevelForRole(Role("bogus")))
}

func TestLevelOrdering(t *testing.T) {
	// Gate checks rely on the numeric ordering of levels.
	assert.True(t, LevelNone < LevelMember)
	assert.True(t, LevelMember < LevelCore)
	assert.True(t, LevelCore < LevelAdmin)
}

func TestPolicyEvaluate_RoleWins(t *testing.T) {
	policy := NewPolicy([]string{"iotgcet2024@gmail.com"})

	tests := []struct {
		name string
		role Role
		want Level
	}{
		{"admin role", RoleAdmin, LevelAdmin},
		{"core role", RoleCore, LevelCore},
		{"member role", RoleMember, LevelMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := &Identity{ID: "u1", Email: "someone@gcet.edu.in"}
			profile := &Profile{ID: "u1", Role: tt.role}
			assert.Equal(t, tt.want, policy.Evaluate(identity, profile))
		})
	}
}

func TestPolicyEvaluate_AllowlistFallback(t *testing.T) {
	policy := NewPolicy([]string{"iotgcet2024@gmail.com"})

	// Listed email is admin even with no profile at all.
	identity := &Identity{ID: "u1", Email: "iotgcet2024@gmail.com"}
	assert.Equal(t, LevelAdmin, policy.Evaluate(identity, nil))

	// Listed email with a tinkerer profile still falls through to the list.
	profile := &Profile{ID: "u1", Role: RoleTinkerer}
	assert.Equal(t, LevelAdmin, policy.Evaluate(identity, profile))
}

func TestPolicyEvaluate_AllowlistCaseInsensitive(t *testing.T) {
	policy := NewPolicy([]string{"IotGcet2024@Gmail.COM"})

	identity := &Identity{ID: "u1", Email: "iotgcet2024@GMAIL.com"}
	assert.Equal(t, LevelAdmin, policy.Evaluate(identity, nil))
}

func TestPolicyEvaluate_RoleBeatsAllowlist(t *testing.T) {
	// A profile role always takes precedence over the allow-list, so a
	// demoted account cannot keep admin through a stale list entry.
	policy := NewPolicy([]string{"iotgcet2024@gmail.com"})

	identity := &Identity{ID: "u1", Email: "iotgcet2024@gmail.com"}
	profile := &Profile{ID: "u1", Role: RoleMember}
	assert.Equal(t, LevelMember, policy.Evaluate(identity, profile))
}

func TestPolicyEvaluate_None(t *testing.T) {
	policy := NewPolicy([]string{"iotgcet2024@gmail.com"})

	// No identity at all.
	assert.Equal(t, LevelNone, policy.Evaluate(nil, nil))

	// Unlisted identity without a profile.
	identity := &Identity{ID: "u2", Email: "fresh@gcet.edu.in"}
	assert.Equal(t, LevelNone, policy.Evaluate(identity, nil))

	// Tinkerer profile grants nothing.
	profile := &Profile{ID: "u2", Role: RoleTinkerer}
	assert.Equal(t, LevelNone, policy.Evaluate(identity, profile))
}

func TestPolicyEvaluate_Pure(t *testing.T) {
	policy := NewPolicy([]string{"iotgcet2024@gmail.com"})
	identity := &Identity{ID: "u1", Email: "someone@gcet.edu.in"}
	profile := &Profile{ID: "u1", Role: RoleCore}

	first := policy.Evaluate(identity, profile)
	for range 10 {
		assert.Equal(t, first, policy.Evaluate(identity, profile))
	}
}

func TestNewPolicy_SkipsEmptyEntries(t *testing.T) {
	policy := NewPolicy([]string{"", "  ", "a@b.c"})

	assert.Equal(t, LevelAdmin, policy.Evaluate(&Identity{Email: "a@b.c"}, nil))
	assert.Equal(t, LevelNone, policy.Evaluate(&Identity{Email: ""}, nil))
}
