package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"taskdesk/internal/domain"
)

const userColumns = `id,name,email,role,capabilities_json,workcenter,active,created_at,updated_at`

func scanUser(row taskScanner) (domain.User, error) {
	var u domain.User
	var role, capsJSON string
	var workcenter sql.NullString
	err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &capsJSON, &workcenter, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.Role = domain.Role(role)
	u.Workcenter = fromNull(workcenter)
	if err := json.Unmarshal([]byte(capsJSON), &u.Capabilities); err != nil {
		return u, fmt.Errorf("user %s capabilities: %w", u.ID, err)
	}
	return u, nil
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	caps, err := json.Marshal(u.Capabilities)
	if err != nil {
		return err
	}
	if u.Capabilities == nil {
		caps = []byte("[]")
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO users(id,name,email,role,capabilities_json,workcenter,active,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Name, u.Email, string(u.Role), string(caps), nullablePtr(u.Workcenter), u.Active, u.CreatedAt, u.UpdatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, email))
}

type UserFilters struct {
	Roles      []domain.Role
	Workcenter string
	ActiveOnly bool
}

func (r Repo) ListUsers(ctx context.Context, f UserFilters) ([]domain.User, error) {
	var clauses []string
	var args []any
	if len(f.Roles) > 0 {
		placeholders := make([]string, len(f.Roles))
		for i, role := range f.Roles {
			placeholders[i] = "?"
			args = append(args, string(role))
		}
		clauses = append(clauses, "role IN ("+strings.Join(placeholders, ",")+")")
	}
	if f.Workcenter != "" {
		clauses = append(clauses, "workcenter=?")
		args = append(args, f.Workcenter)
	}
	if f.ActiveOnly {
		clauses = append(clauses, "active=1")
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users `+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) UpdateUserRole(ctx context.Context, tx *sql.Tx, id string, role domain.Role, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE users SET role=?, updated_at=? WHERE id=?`, string(role), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateUserCapabilities(ctx context.Context, tx *sql.Tx, id string, capabilities []string, updatedAt string) error {
	caps, err := json.Marshal(capabilities)
	if err != nil {
		return err
	}
	if capabilities == nil {
		caps = []byte("[]")
	}
	res, err := tx.ExecContext(ctx, `UPDATE users SET capabilities_json=?, updated_at=? WHERE id=?`, string(caps), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetUserActive(ctx context.Context, tx *sql.Tx, id string, active bool, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE users SET active=?, updated_at=? WHERE id=?`, active, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
