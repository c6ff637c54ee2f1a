package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/example/facility-booking/internal/persistence"
)

var _ persistence.RegistryStore = (*Store)(nil)

type userRow struct {
	ID          string `db:"id"`
	DisplayName string `db:"display_name"`
	Unit        string `db:"unit"`
	IsAdmin     bool   `db:"is_admin"`
	CreatedAt   string `db:"created_at"`
}

type registrationRow struct {
	UserID      string `db:"user_id"`
	Identity    string `db:"identity_key"`
	Numeric     string `db:"numeric_key"`
	DisplayName string `db:"display_name"`
	Unit        string `db:"unit"`
	CreatedAt   string `db:"created_at"`
}

type allowListRow struct {
	Digest    string `db:"digest"`
	CreatedAt string `db:"created_at"`
}

const upsertUserSQL = `
	INSERT INTO users (id, display_name, unit, is_admin, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		display_name = excluded.display_name,
		unit = excluded.unit,
		is_admin = excluded.is_admin
`

const insertAllowListSQL = `
	INSERT INTO allow_list (digest, created_at) VALUES (?, ?)
	ON CONFLICT (digest) DO NOTHING
`

// LoadRegistry reads every user, pending registration and allow-list digest.
func (s *Store) LoadRegistry(ctx context.Context) (persistence.RegistrySnapshot, error) {
	var snapshot persistence.RegistrySnapshot

	var users []userRow
	if err := s.db.SelectContext(ctx, &users,
		`SELECT id, display_name, unit, is_admin, created_at FROM users ORDER BY created_at, id`); err != nil {
		return snapshot, mapError("load users", err)
	}
	for _, row := range users {
		createdAt, err := parseTime(row.CreatedAt)
		if err != nil {
			return snapshot, err
		}
		snapshot.Users = append(snapshot.Users, persistence.User{
			ID:          row.ID,
			DisplayName: row.DisplayName,
			Unit:        row.Unit,
			IsAdmin:     row.IsAdmin,
			CreatedAt:   createdAt,
		})
	}

	var requests []registrationRow
	if err := s.db.SelectContext(ctx, &requests,
		`SELECT user_id, identity_key, numeric_key, display_name, unit, created_at
		 FROM registration_requests ORDER BY created_at, user_id`); err != nil {
		return snapshot, mapError("load registration requests", err)
	}
	for _, row := range requests {
		createdAt, err := parseTime(row.CreatedAt)
		if err != nil {
			return snapshot, err
		}
		snapshot.Requests = append(snapshot.Requests, persistence.RegistrationRequest{
			UserID:      row.UserID,
			Identity:    row.Identity,
			Numeric:     row.Numeric,
			DisplayName: row.DisplayName,
			Unit:        row.Unit,
			CreatedAt:   createdAt,
		})
	}

	var entries []allowListRow
	if err := s.db.SelectContext(ctx, &entries, `SELECT digest, created_at FROM allow_list ORDER BY created_at, digest`); err != nil {
		return snapshot, mapError("load allow list", err)
	}
	for _, row := range entries {
		createdAt, err := parseTime(row.CreatedAt)
		if err != nil {
			return snapshot, err
		}
		snapshot.AllowList = append(snapshot.AllowList, persistence.AllowListEntry{Digest: row.Digest, CreatedAt: createdAt})
	}

	return snapshot, nil
}

// SaveUser upserts a user and clears any registration request it supersedes.
func (s *Store) SaveUser(ctx context.Context, user persistence.User) error {
	return s.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(upsertUserSQL),
			user.ID, user.DisplayName, user.Unit, user.IsAdmin, formatTime(user.CreatedAt)); err != nil {
			return mapError("save user", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM registration_requests WHERE user_id = ?`), user.ID); err != nil {
			return mapError("clear registration request", err)
		}
		return nil
	})
}

// DeleteUser removes a user.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return mapError("delete user", err)
	}
	return requireAffected("delete user", result)
}

// SaveRegistrationRequest stores a request, replacing an older one from the
// same user.
func (s *Store) SaveRegistrationRequest(ctx context.Context, request persistence.RegistrationRequest) error {
	const query = `
		INSERT INTO registration_requests (user_id, identity_key, numeric_key, display_name, unit, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			identity_key = excluded.identity_key,
			numeric_key = excluded.numeric_key,
			display_name = excluded.display_name,
			unit = excluded.unit,
			created_at = excluded.created_at
	`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		request.UserID, request.Identity, request.Numeric, request.DisplayName, request.Unit, formatTime(request.CreatedAt))
	return mapError("save registration request", err)
}

// DeleteRegistrationRequest removes a pending registration.
func (s *Store) DeleteRegistrationRequest(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM registration_requests WHERE user_id = ?`), userID)
	if err != nil {
		return mapError("delete registration request", err)
	}
	return requireAffected("delete registration request", result)
}

// AddAllowListEntry records a digest. Adding an existing digest is a no-op.
func (s *Store) AddAllowListEntry(ctx context.Context, entry persistence.AllowListEntry) error {
	_, err := s.db.ExecContext(ctx, s.rebind(insertAllowListSQL), entry.Digest, formatTime(entry.CreatedAt))
	return mapError("add allow list entry", err)
}

// ApproveRegistration consumes the user's registration request, records the
// digest and creates the user in one transaction.
func (s *Store) ApproveRegistration(ctx context.Context, user persistence.User, entry persistence.AllowListEntry) error {
	return s.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM registration_requests WHERE user_id = ?`), user.ID)
		if err != nil {
			return mapError("consume registration request", err)
		}
		if err := requireAffected("consume registration request", result); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(insertAllowListSQL), entry.Digest, formatTime(entry.CreatedAt)); err != nil {
			return mapError("add allow list entry", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO users (id, display_name, unit, is_admin, created_at) VALUES (?, ?, ?, ?, ?)`),
			user.ID, user.DisplayName, user.Unit, user.IsAdmin, formatTime(user.CreatedAt)); err != nil {
			return mapError("create user", err)
		}
		return nil
	})
}
