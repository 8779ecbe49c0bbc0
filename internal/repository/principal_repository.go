package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"smartclinic/api/internal/models"
)

var ErrPrincipalNotFound = errors.New("principal not found")

// roleTables is the fixed role -> table mapping; role is implicit in which
// collection a principal belongs to.
var roleTables = map[models.Role]string{
	models.RoleAdmin:   "admins",
	models.RoleDoctor:  "doctors",
	models.RolePatient: "patients",
}

// PrincipalRepository is the credential store: one table per role, each with
// the same authentication columns.
type PrincipalRepository struct {
	pool *pgxpool.Pool
}

func NewPrincipalRepository(pool *pgxpool.Pool) *PrincipalRepository {
	return &PrincipalRepository{pool: pool}
}

func selectColumns(role models.Role) string {
	if role == models.RoleAdmin {
		return "id, username, email, password_hash, is_active, role, created_at, updated_at"
	}
	return "id, username, email, password_hash, is_active, '', created_at, updated_at"
}

func scanPrincipal(row pgx.Row, role models.Role) (models.Principal, error) {
	var p models.Principal
	var adminRole string
	if err := row.Scan(
		&p.ID,
		&p.Username,
		&p.Email,
		&p.PasswordHash,
		&p.Active,
		&adminRole,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Principal{}, ErrPrincipalNotFound
		}
		return models.Principal{}, err
	}
	p.Role = role
	p.AdminRole = models.AdminRole(adminRole)
	return p, nil
}

// FindByUsernameOrEmail looks a principal up by either identifier within the
// given role's collection.
func (r *PrincipalRepository) FindByUsernameOrEmail(ctx context.Context, role models.Role, key string) (models.Principal, error) {
	table, ok := roleTables[role]
	if !ok {
		return models.Principal{}, fmt.Errorf("unknown role %q", role)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE username = $1 OR email = $1`,
		selectColumns(role), table,
	)
	return scanPrincipal(r.pool.QueryRow(ctx, query, key), role)
}

func (r *PrincipalRepository) FindByEmail(ctx context.Context, role models.Role, email string) (models.Principal, error) {
	table, ok := roleTables[role]
	if !ok {
		return models.Principal{}, fmt.Errorf("unknown role %q", role)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE email = $1`,
		selectColumns(role), table,
	)
	return scanPrincipal(r.pool.QueryRow(ctx, query, email), role)
}

func (r *PrincipalRepository) GetByID(ctx context.Context, role models.Role, id int64) (models.Principal, error) {
	table, ok := roleTables[role]
	if !ok {
		return models.Principal{}, fmt.Errorf("unknown role %q", role)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE id = $1`,
		selectColumns(role), table,
	)
	return scanPrincipal(r.pool.QueryRow(ctx, query, id), role)
}

// CreatePatient inserts a self-registered patient and returns the new id.
func (r *PrincipalRepository) CreatePatient(ctx context.Context, p models.Principal) (int64, error) {
	const query = `
		INSERT INTO patients (username, email, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id
	`

	var id int64
	err := r.pool.QueryRow(ctx, query, p.Username, p.Email, p.PasswordHash, p.Active).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SetActive flips the soft-delete flag; principals are never physically removed.
func (r *PrincipalRepository) SetActive(ctx context.Context, role models.Role, id int64, active bool) error {
	table, ok := roleTables[role]
	if !ok {
		return fmt.Errorf("unknown role %q", role)
	}

	query := fmt.Sprintf(
		`UPDATE %s SET is_active = $2, updated_at = NOW() WHERE id = $1`,
		table,
	)
	cmd, err := r.pool.Exec(ctx, query, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func (r *PrincipalRepository) UpdateAdminRole(ctx context.Context, id int64, role models.AdminRole) error {
	const query = `UPDATE admins SET role = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, string(role))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func (r *PrincipalRepository) SetDoctorPhotoURL(ctx context.Context, id int64, url string) error {
	const query = `UPDATE doctors SET profile_photo_url = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, url)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}
