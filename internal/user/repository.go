package user

import (
	"context"
	"database/sql"
	"errors"

	"hirechat/internal/stomp"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, u *User) (*User, error) {
	var companyID, companyName, companyLogo any
	if u.Company != nil {
		companyID, companyName, companyLogo = u.Company.ID, u.Company.Name, u.Company.Logo
	}
	query := `INSERT INTO users (email, name, avatar, password, company_id, company_name, company_logo)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		u.Email, u.Name, u.Avatar, u.Password, companyID, companyName, companyLogo).Scan(&u.ID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT id, email, name, avatar, password, company_id, company_name, company_logo
	          FROM users WHERE email = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *Repository) GetUserByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT id, email, name, avatar, password, company_id, company_name, company_logo
	          FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// EmailByID resolves the routing key for private delivery.
func (r *Repository) EmailByID(ctx context.Context, id int64) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = $1`, id).Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errors.New("user not found")
		}
		return "", err
	}
	return email, nil
}

// ListOthers returns every user except the given one, the raw material
// for the connected-users response.
func (r *Repository) ListOthers(ctx context.Context, id int64) ([]User, error) {
	query := `SELECT id, email, name, avatar, password, company_id, company_name, company_logo
	          FROM users WHERE id <> $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanUser(row rowScanner) (*User, error) {
	u := &User{}
	var companyID sql.NullInt64
	var companyName, companyLogo sql.NullString

	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Avatar, &u.Password, &companyID, &companyName, &companyLogo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("user not found")
		}
		return nil, err
	}
	if companyID.Valid {
		u.Company = &stomp.Company{ID: companyID.Int64, Name: companyName.String, Logo: companyLogo.String}
	}
	return u, nil
}
