package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/realtime"
)

const profileColumns = `id, email, full_name, avatar_url, role, company_name, created_at, updated_at`

// CreateProfile inserts a new profile. Generates a UUID if ID is empty.
func (s *SQLiteStore) CreateProfile(ctx context.Context, p model.Profile) (*model.Profile, error) {
	p.Email = strings.TrimSpace(p.Email)
	if p.Email == "" {
		return nil, apperr.Invalid("email", "must not be empty")
	}
	if p.Role == "" {
		p.Role = model.RoleClient
	}
	p.ID = newID(p.ID)
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.FullName, p.AvatarURL, string(p.Role), p.CompanyName,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}

	s.emit(change{table: TableProfiles, op: realtime.OpInsert, id: p.ID, row: p})
	return &p, nil
}

// GetProfileByID retrieves a single profile by ID.
func (s *SQLiteStore) GetProfileByID(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	err := s.db.GetContext(ctx, &p,
		"SELECT "+profileColumns+" FROM profiles WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "profile", id, "getting profile "+id)
	}
	return &p, nil
}

// GetProfileByEmail retrieves the profile linked to email, ignoring case.
func (s *SQLiteStore) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	email = strings.TrimSpace(email)
	var p model.Profile
	err := s.db.GetContext(ctx, &p,
		"SELECT "+profileColumns+" FROM profiles WHERE email = ?", email)
	if err != nil {
		return nil, notFound(err, "profile", email, "getting profile by email")
	}
	return &p, nil
}

// ListProfiles returns every profile ordered by name.
func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	var profiles []model.Profile
	err := s.db.SelectContext(ctx, &profiles,
		"SELECT "+profileColumns+" FROM profiles ORDER BY full_name, email")
	if err != nil {
		return nil, fmt.Errorf("querying profiles: %w", err)
	}
	return profiles, nil
}

// ListAdmins returns the profiles with the admin role.
func (s *SQLiteStore) ListAdmins(ctx context.Context) ([]model.Profile, error) {
	var profiles []model.Profile
	err := s.db.SelectContext(ctx, &profiles,
		"SELECT "+profileColumns+" FROM profiles WHERE role = ? ORDER BY full_name",
		string(model.RoleAdmin))
	if err != nil {
		return nil, fmt.Errorf("querying admins: %w", err)
	}
	return profiles, nil
}
