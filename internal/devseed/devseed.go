// Package devseed populates a development database with a small roster of
// member profiles so the portal has data to show after a fresh migration.
// It is wired to the club-admin seed-dev command and never runs in
// production.
package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/iotgcet/club-portal/internal/data"
	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
)

// seedProfiles is the demo roster: one of each role plus a couple of
// tinkerers, mirroring what a small club year looks like.
var seedProfiles = []domainauth.Profile{
	{ID: "dev-admin", DisplayName: "Dev Admin", RollNumber: "21EC001", Department: "ECE", Role: domainauth.RoleAdmin, XP: 500},
	{ID: "dev-core", DisplayName: "Core Lead", RollNumber: "22CS014", Department: "CSE", Role: domainauth.RoleCore, XP: 320},
	{ID: "dev-member", DisplayName: "Active Member", RollNumber: "23EE031", Department: "EEE", Role: domainauth.RoleMember, XP: 120},
	{ID: "dev-tinkerer-1", DisplayName: "Fresher One", RollNumber: "24EC042", Department: "ECE", Role: domainauth.RoleTinkerer},
	{ID: "dev-tinkerer-2", DisplayName: "Fresher Two", RollNumber: "24ME007", Department: "ME"},
}

// Seed upserts the demo roster. Re-running is safe: each Promote refreshes
// display metadata and re-applies the intended role in one transaction,
// leaving any XP earned since the last seed intact.
func Seed(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	repo := data.NewProfileRepo(db)

	for _, p := range seedProfiles {
		if _, err := repo.Promote(ctx, p, domainauth.ParseRole(string(p.Role))); err != nil {
			return fmt.Errorf("seed profile %s: %w", p.ID, err)
		}
	}

	logger.InfoContext(ctx, "development roster seeded", "profiles", len(seedProfiles))
	return nil
}
