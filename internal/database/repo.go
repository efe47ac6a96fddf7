package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"navkeeper/internal/models"
)

const uniqueViolation = "23505"

type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

// --- users ---

func (r *Repo) CreateUser(ctx context.Context, username, passwordHash string) (models.User, error) {
	u := models.User{ID: uuid.NewString(), Username: username, PasswordHash: passwordHash}
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3)`, u.ID, u.Username, u.PasswordHash)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return models.User{}, models.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return u, nil
}

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT id, username, password_hash FROM users WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrNotFound
	}
	return u, err
}

// --- positions ---

func (r *Repo) ListPositions(ctx context.Context, userID string) ([]models.Position, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT user_id, code, name, amount, shares FROM positions WHERE user_id = $1 ORDER BY code ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Position{}
	for rows.Next() {
		var p models.Position
		if err := rows.StructScan(&p); err != nil {
			r.log.Warnf("scan position failed: %v", err)
			continue
		}
		res = append(res, p)
	}
	return res, nil
}

func (r *Repo) GetPosition(ctx context.Context, userID, code string) (models.Position, error) {
	var p models.Position
	err := r.db.GetContext(ctx, &p, `SELECT user_id, code, name, amount, shares FROM positions WHERE user_id = $1 AND code = $2`, userID, code)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Position{}, models.ErrNotFound
	}
	return p, err
}

func (r *Repo) CreatePosition(ctx context.Context, p models.Position) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO positions (user_id, code, name, amount, shares) VALUES ($1, $2, $3, $4::numeric, $5::numeric)`,
		p.UserID, p.Code, p.Name, p.Amount.String(), p.Shares.String())
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return models.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// UpdatePositionAmount stores the full (amount, shares) pair produced by a
// buy or sell.
func (r *Repo) UpdatePositionAmount(ctx context.Context, userID, code string, amount, shares decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE positions SET amount = $1::numeric, shares = $2::numeric WHERE user_id = $3 AND code = $4`,
		amount.String(), shares.String(), userID, code)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repo) DeletePosition(ctx context.Context, userID, code string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM positions WHERE user_id = $1 AND code = $2`, userID, code)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repo) SearchPositions(ctx context.Context, userID, keyword string) ([]models.Position, error) {
	pattern := "%" + keyword + "%"
	rows, err := r.db.QueryxContext(ctx,
		`SELECT user_id, code, name, amount, shares FROM positions WHERE user_id = $1 AND (code LIKE $2 OR name LIKE $2) ORDER BY code ASC`,
		userID, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Position{}
	for rows.Next() {
		var p models.Position
		if err := rows.StructScan(&p); err != nil {
			r.log.Warnf("scan position failed: %v", err)
			continue
		}
		res = append(res, p)
	}
	return res, nil
}

// --- nav history ---

func (r *Repo) GetLastNav(ctx context.Context, code string) (decimal.Decimal, error) {
	var nav decimal.Decimal
	err := r.db.GetContext(ctx, &nav, `SELECT nav FROM nav_history WHERE code = $1 ORDER BY date DESC LIMIT 1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, models.ErrNotFound
	}
	return nav, err
}

// UpsertNav writes the walk's value for (code, date) in one statement, so
// concurrent pollers for the same code cannot lose updates.
func (r *Repo) UpsertNav(ctx context.Context, code, date string, nav, changeRate decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO nav_history (code, date, nav, change_rate) VALUES ($1, $2, $3::numeric, $4::numeric)
		 ON CONFLICT (code, date) DO UPDATE SET nav = EXCLUDED.nav, change_rate = EXCLUDED.change_rate`,
		code, date, nav.String(), changeRate.String())
	return err
}

func (r *Repo) ListNavCodes(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT DISTINCT code FROM nav_history`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			r.log.Warnf("scan nav code failed: %v", err)
			continue
		}
		res = append(res, code)
	}
	return res, nil
}
