package ticket

import (
	"context"
	"database/sql"
)

// PostgresStore persists tickets in PostgreSQL. Ownership counts are
// derived with COUNT(*) so the record and the count can never disagree.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed ticket store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, t *Ticket) error {
	return p.db.QueryRowContext(ctx, `
		INSERT INTO tickets (event_name, seat, owner, price, held_amount, held_from,
		                     status, approved_buyer, escrowed_amount, seller)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, t.EventName, t.Seat, t.Owner, t.Price, t.HeldAmount, t.HeldFrom,
		string(t.Status), t.ApprovedBuyer, t.EscrowedAmount, t.Seller,
	).Scan(&t.ID)
}

func (p *PostgresStore) Get(ctx context.Context, id int64) (*Ticket, error) {
	t := &Ticket{}
	var status string
	err := p.db.QueryRowContext(ctx, `
		SELECT id, event_name, seat, owner, price, held_amount, held_from,
		       status, approved_buyer, escrowed_amount, seller
		FROM tickets WHERE id = $1
	`, id).Scan(&t.ID, &t.EventName, &t.Seat, &t.Owner, &t.Price, &t.HeldAmount, &t.HeldFrom,
		&status, &t.ApprovedBuyer, &t.EscrowedAmount, &t.Seller)

	if err == sql.ErrNoRows {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	return t, nil
}

func (p *PostgresStore) Update(ctx context.Context, t *Ticket) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE tickets SET
			owner = $1, price = $2, held_amount = $3, held_from = $4,
			status = $5, approved_buyer = $6, escrowed_amount = $7, seller = $8,
			updated_at = NOW()
		WHERE id = $9
	`, t.Owner, t.Price, t.HeldAmount, t.HeldFrom,
		string(t.Status), t.ApprovedBuyer, t.EscrowedAmount, t.Seller, t.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTicketNotFound
	}
	return nil
}

func (p *PostgresStore) OwnerCount(ctx context.Context, identity string) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tickets WHERE owner = $1
	`, identity).Scan(&count)
	return count, err
}
