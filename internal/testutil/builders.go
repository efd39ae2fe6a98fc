package testutil

import (
	"time"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
)

// ProfileBuilder provides a fluent interface for building Profile values in tests.
type ProfileBuilder struct {
	profile domainauth.Profile
}

// NewProfile creates a ProfileBuilder with sensible defaults.
func NewProfile(id string) *ProfileBuilder {
	return &ProfileBuilder{
		profile: domainauth.Profile{
			ID:          id,
			DisplayName: "Test Member",
			RollNumber:  "21EC001",
			Department:  "ECE",
			Role:        domainauth.RoleTinkerer,
			CreatedAt:   time.Now().UTC(),
		},
	}
}

// WithName sets the display name.
func (b *ProfileBuilder) WithName(name string) *ProfileBuilder {
	b.profile.DisplayName = name
	return b
}

// WithRoll sets the roll number.
func (b *ProfileBuilder) WithRoll(roll string) *ProfileBuilder {
	b.profile.RollNumber = roll
	return b
}

// WithDepartment sets the department.
func (b *ProfileBuilder) WithDepartment(dept string) *ProfileBuilder {
	b.profile.Department = dept
	return b
}

// WithRole sets the role.
func (b *ProfileBuilder) WithRole(role domainauth.Role) *ProfileBuilder {
	b.profile.Role = role
	return b
}

// WithXP sets the experience points.
func (b *ProfileBuilder) WithXP(xp int) *ProfileBuilder {
	b.profile.XP = xp
	return b
}

// Build returns the constructed Profile.
func (b *ProfileBuilder) Build() domainauth.Profile {
	return b.profile
}

// NewIdentity creates an Identity for tests.
func NewIdentity(id, email string) domainauth.Identity {
	return domainauth.Identity{ID: id, Email: email}
}
