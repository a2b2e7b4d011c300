// Package app wires workspace bootstrap: opening the store, applying
// migrations and seeding the first administrator account.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskdesk/internal/domain"
	"taskdesk/internal/repo"
)

// DefaultAdminID is the well-known id of the seeded superadmin so local
// tooling can act before any other account exists.
const DefaultAdminID = "admin"

// EnsureAdmin seeds a SUPERADMIN account if none exists and returns it.
// Capability flags are irrelevant for SUPERADMIN, which overrides them all.
func EnsureAdmin(ctx context.Context, db *sql.DB, name, email string) (domain.User, error) {
	r := repo.Repo{DB: db}
	if u, err := r.GetUser(ctx, DefaultAdminID); err == nil {
		return u, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	if name == "" {
		name = "Administrator"
	}
	if email == "" {
		email = "admin@localhost"
	}
	now := time.Now().UTC().Format(time.RFC3339)
	u := domain.User{
		ID:           DefaultAdminID,
		Name:         name,
		Email:        email,
		Role:         domain.RoleSuperadmin,
		Capabilities: []string{},
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := r.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, fmt.Errorf("seed admin: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// IssueAPIKey mints a raw key for a user and stores its hash; the raw value
// is only ever returned here.
func IssueAPIKey(ctx context.Context, db *sql.DB, userID, name string) (string, error) {
	raw := uuid.New().String() + uuid.New().String()
	r := repo.Repo{DB: db}
	key := domain.APIKey{
		ID:      uuid.New().String(),
		UserID:  userID,
		Name:    name,
		KeyHash: repo.HashAPIKey(raw),
	}
	if err := r.InsertAPIKey(ctx, nil, key); err != nil {
		return "", err
	}
	return raw, nil
}
