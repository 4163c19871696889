package account

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStore persists accounts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed account store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, acct *Account) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO accounts (identity, first_name, last_name, created_at)
		VALUES ($1, $2, $3, $4)
	`, acct.Identity, acct.FirstName, acct.LastName, acct.CreatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrAccountExists
	}
	return err
}

func (p *PostgresStore) Get(ctx context.Context, identity string) (*Account, error) {
	acct := &Account{}
	err := p.db.QueryRowContext(ctx, `
		SELECT identity, first_name, last_name, created_at
		FROM accounts WHERE identity = $1
	`, identity).Scan(&acct.Identity, &acct.FirstName, &acct.LastName, &acct.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}
