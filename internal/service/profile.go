package service

import (
	"context"
	"errors"
	"log/slog"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/ports"
)

// Resolution is the outcome of a profile lookup. Absence is not an error:
// a brand-new account's row may not exist yet, or an admin may have deleted
// it. When the underlying store failed for another reason, Ignored records
// the swallowed cause so tests can assert the non-fatal path deliberately.
type Resolution struct {
	Profile *domainauth.Profile
	Ignored error
}

// Found reports whether a profile was resolved.
func (r Resolution) Found() bool { return r.Profile != nil }

// Resolver maps an identity id to its profile row. It never fails: store
// errors degrade to "no profile yet" so the application stays navigable
// when profile data is temporarily unavailable.
type Resolver struct {
	store  ports.ProfileStore
	logger *slog.Logger
}

// NewResolver constructs a Resolver. A nil logger falls back to the default.
func NewResolver(store ports.ProfileStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve issues exactly one read for the identity id.
func (r *Resolver) Resolve(ctx context.Context, identityID string) Resolution {
	if identityID == "" {
		return Resolution{}
	}

	profile, err := r.store.Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, ports.ErrProfileNotFound) {
			return Resolution{}
		}
		r.logger.WarnContext(ctx, "profile fetch failed, treating as absent",
			"identity_id", identityID, "error", err)
		return Resolution{Ignored: err}
	}
	return Resolution{Profile: &profile}
}
