package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iotgcet/club-portal/internal/data/pgxutil"
	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/ports"
)

// ProfileRepo provides database operations for member profiles.
// It implements ports.ProfileStore.
type ProfileRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewProfileRepo creates a new ProfileRepo with the real time provider.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewProfileRepoWithTimeProvider creates a ProfileRepo with a custom time provider (useful for tests).
func NewProfileRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: tp}
}

const profileColumns = `id, display_name, roll_number, department, role, xp, created_at`

const profileGetByIDQuery = `
	SELECT ` + profileColumns + `
	FROM profiles
	WHERE id = $1`

const profileListQuery = `
	SELECT ` + profileColumns + `
	FROM profiles
	ORDER BY created_at DESC, id
	LIMIT $1 OFFSET $2`

const profileUpsertQuery = `
	INSERT INTO profiles (id, display_name, roll_number, department, role, xp, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		display_name = EXCLUDED.display_name,
		roll_number  = EXCLUDED.roll_number,
		department   = EXCLUDED.department
	RETURNING ` + profileColumns

const profileSetRoleQuery = `
	UPDATE profiles SET role = $2 WHERE id = $1
	RETURNING ` + profileColumns

// Get retrieves a profile by identity id. Returns ports.ErrProfileNotFound
// when no row exists; at most one row can match (id is the primary key).
func (r *ProfileRepo) Get(ctx context.Context, identityID string) (domainauth.Profile, error) {
	var out domainauth.Profile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, profileGetByIDQuery, identityID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.Profile])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainauth.Profile{}, ports.ErrProfileNotFound
		}
		return domainauth.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return out, nil
}

// Upsert inserts the profile row, or refreshes display metadata when the
// identity already has one. Role and XP are never overwritten by an upsert;
// they change only through SetRole and AddXP.
func (r *ProfileRepo) Upsert(ctx context.Context, p domainauth.Profile) (domainauth.Profile, error) {
	role := domainauth.ParseRole(string(p.Role))
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.timeProvider.Now().UTC()
	}

	var out domainauth.Profile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, profileUpsertQuery,
			p.ID,
			strings.TrimSpace(p.DisplayName),
			strings.TrimSpace(p.RollNumber),
			strings.TrimSpace(p.Department),
			role,
			p.XP,
			createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.Profile])
		return err
	})
	if err != nil {
		return domainauth.Profile{}, r.mapWriteErr(err)
	}
	return out, nil
}

// Promote upserts the profile row and forces the given role in a single
// transaction, so a promotion can never leave a freshly inserted row at
// the default role. XP and creation time of an existing row are preserved,
// matching Upsert.
func (r *ProfileRepo) Promote(ctx context.Context, p domainauth.Profile, role domainauth.Role) (domainauth.Profile, error) {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.timeProvider.Now().UTC()
	}

	var out domainauth.Profile
	err := pgxutil.WithPgxTx(ctx, r.DB, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, profileUpsertQuery,
			p.ID,
			strings.TrimSpace(p.DisplayName),
			strings.TrimSpace(p.RollNumber),
			strings.TrimSpace(p.Department),
			domainauth.ParseRole(string(p.Role)),
			p.XP,
			createdAt,
		)
		if err != nil {
			return err
		}
		if _, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.Profile]); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		rows, err = tx.Query(ctx, profileSetRoleQuery, p.ID, domainauth.ParseRole(string(role)))
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.Profile])
		return err
	})
	if err != nil {
		return domainauth.Profile{}, r.mapWriteErr(err)
	}
	return out, nil
}

// SetRole changes the role of an existing profile.
func (r *ProfileRepo) SetRole(ctx context.Context, identityID string, role domainauth.Role) (domainauth.Profile, error) {
	var out domainauth.Profile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, profileSetRoleQuery,
			identityID, domainauth.ParseRole(string(role)))
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.Profile])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainauth.Profile{}, ports.ErrProfileNotFound
		}
		return domainauth.Profile{}, fmt.Errorf("set profile role: %w", err)
	}
	return out, nil
}

// AddXP adds delta experience points, clamping at zero, and returns the
// updated profile.
func (r *ProfileRepo) AddXP(ctx context.Context, identityID string, delta int) (domainauth.Profile, error) {
	var out domainauth.Profile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE profiles SET xp = GREATEST(xp + $2, 0) WHERE id = $1
			RETURNING `+profileColumns,
			identityID, delta)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.Profile])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainauth.Profile{}, ports.ErrProfileNotFound
		}
		return domainauth.Profile{}, fmt.Errorf("add profile xp: %w", err)
	}
	return out, nil
}

// Delete removes a profile by identity id.
func (r *ProfileRepo) Delete(ctx context.Context, identityID string) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, identityID)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete profile: %w", err)
	}
	return rows > 0, nil
}

// List retrieves profiles with pagination, newest first.
func (r *ProfileRepo) List(ctx context.Context, limit, offset int) ([]domainauth.Profile, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rowsOut []domainauth.Profile
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, profileListQuery, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[domainauth.Profile])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return rowsOut, nil
}

// mapWriteErr classifies constraint violations into domain sentinels.
func (r *ProfileRepo) mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "roll_number") {
			return ErrRollNumberTaken
		}
	}
	return fmt.Errorf("write profile: %w", err)
}
