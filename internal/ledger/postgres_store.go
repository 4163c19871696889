package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mbd888/ticketline/internal/idgen"
)

// PostgresStore implements Store and EventStore with PostgreSQL. Every
// mutation writes the balance rows, the entry rows, and the append-only
// event rows in one database transaction.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed ledger store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ensureBalance creates a zero balance row if the identity is unknown.
func ensureBalance(ctx context.Context, tx *sql.Tx, identity string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_balances (identity) VALUES ($1)
		ON CONFLICT (identity) DO NOTHING
	`, identity)
	return err
}

// move applies balance deltas for one identity. The table's CHECK
// constraints reject any move that would drive a column negative, but
// callers still pre-check to return typed errors.
func move(ctx context.Context, tx *sql.Tx, identity string, dAvail, dHeld, dEscrow, dIn, dOut int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE ledger_balances
		SET available = available + $2,
		    held      = held + $3,
		    escrowed  = escrowed + $4,
		    total_in  = total_in + $5,
		    total_out = total_out + $6,
		    updated_at = NOW()
		WHERE identity = $1
		  AND available + $2 >= 0
		  AND held + $3 >= 0
		  AND escrowed + $4 >= 0
	`, identity, dAvail, dHeld, dEscrow, dIn, dOut)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func record(ctx context.Context, tx *sql.Tx, identity, entryType string, amount int64, ref, counterparty, eventType string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, identity, type, amount, reference, counterparty)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, idgen.WithPrefix("ent_"), identity, entryType, amount, ref, counterparty); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_events (identity, event_type, amount, reference, counterparty)
		VALUES ($1, $2, $3, $4, $5)
	`, identity, eventType, amount, ref, counterparty)
	return err
}

func (p *PostgresStore) GetBalance(ctx context.Context, identity string) (*Balance, error) {
	bal := &Balance{Identity: identity}

	err := p.db.QueryRowContext(ctx, `
		SELECT available, held, escrowed, total_in, total_out, updated_at
		FROM ledger_balances WHERE identity = $1
	`, identity).Scan(&bal.Available, &bal.Held, &bal.Escrowed, &bal.TotalIn, &bal.TotalOut, &bal.UpdatedAt)

	if err == sql.ErrNoRows {
		return &Balance{Identity: identity, UpdatedAt: time.Now()}, nil
	}
	if err != nil {
		return nil, err
	}
	return bal, nil
}

func (p *PostgresStore) Deposit(ctx context.Context, identity string, amount int64, ref string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		if err := ensureBalance(ctx, tx, identity); err != nil {
			return err
		}
		if err := move(ctx, tx, identity, amount, 0, 0, amount, 0); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_deposits (reference) VALUES ($1)
		`, ref); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
				return ErrDuplicateDeposit
			}
			return fmt.Errorf("record deposit reference: %w", err)
		}
		return record(ctx, tx, identity, "deposit", amount, ref, "", EventDeposit)
	})
}

func (p *PostgresStore) HasDeposit(ctx context.Context, ref string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM ledger_deposits WHERE reference = $1)
	`, ref).Scan(&exists)
	return exists, err
}

func (p *PostgresStore) Hold(ctx context.Context, identity string, amount int64, ref string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		if err := move(ctx, tx, identity, -amount, amount, 0, 0, 0); err != nil {
			if err == sql.ErrNoRows {
				return ErrInsufficientFunds
			}
			return err
		}
		return record(ctx, tx, identity, "hold", amount, ref, "", EventHold)
	})
}

func (p *PostgresStore) ReleaseHold(ctx context.Context, identity string, amount int64, ref string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		if err := move(ctx, tx, identity, amount, -amount, 0, 0, 0); err != nil {
			if err == sql.ErrNoRows {
				return ErrInsufficientHeld
			}
			return err
		}
		return record(ctx, tx, identity, "hold_release", amount, ref, "", EventHoldRelease)
	})
}

func (p *PostgresStore) SettleHold(ctx context.Context, from, to string, amount int64, ref string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		if err := move(ctx, tx, from, 0, -amount, 0, 0, amount); err != nil {
			if err == sql.ErrNoRows {
				return ErrInsufficientHeld
			}
			return err
		}
		if err := ensureBalance(ctx, tx, to); err != nil {
			return err
		}
		if err := move(ctx, tx, to, amount, 0, 0, amount, 0); err != nil {
			return err
		}
		if err := record(ctx, tx, from, "hold_settle", amount, ref, to, EventHoldSettleOut); err != nil {
			return err
		}
		return record(ctx, tx, to, "hold_receive", amount, ref, from, EventHoldSettleIn)
	})
}

func (p *PostgresStore) EscrowLock(ctx context.Context, identity string, amount int64, ref string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		if err := move(ctx, tx, identity, -amount, 0, amount, 0, 0); err != nil {
			if err == sql.ErrNoRows {
				return ErrInsufficientFunds
			}
			return err
		}
		return record(ctx, tx, identity, "escrow_lock", amount, ref, "", EventEscrowLock)
	})
}

func (p *PostgresStore) RefundEscrow(ctx context.Context, identity string, amount int64, ref string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		if err := move(ctx, tx, identity, amount, 0, -amount, 0, 0); err != nil {
			if err == sql.ErrNoRows {
				return ErrInsufficientEscrow
			}
			return err
		}
		return record(ctx, tx, identity, "escrow_refund", amount, ref, "", EventEscrowRefund)
	})
}

func (p *PostgresStore) SettleEscrow(ctx context.Context, buyer, seller, issuer string, sellerShare, commission int64, ref string) error {
	total := sellerShare + commission
	return p.withTx(ctx, func(tx *sql.Tx) error {
		if err := move(ctx, tx, buyer, 0, 0, -total, 0, total); err != nil {
			if err == sql.ErrNoRows {
				return ErrInsufficientEscrow
			}
			return err
		}
		if err := ensureBalance(ctx, tx, seller); err != nil {
			return err
		}
		if err := move(ctx, tx, seller, sellerShare, 0, 0, sellerShare, 0); err != nil {
			return err
		}
		if err := ensureBalance(ctx, tx, issuer); err != nil {
			return err
		}
		if err := move(ctx, tx, issuer, commission, 0, 0, commission, 0); err != nil {
			return err
		}
		if err := record(ctx, tx, buyer, "escrow_settle", total, ref, seller, EventEscrowSettleOut); err != nil {
			return err
		}
		if err := record(ctx, tx, seller, "sale_proceeds", sellerShare, ref, buyer, EventEscrowSellerIn); err != nil {
			return err
		}
		return record(ctx, tx, issuer, "commission", commission, ref, seller, EventEscrowCommission)
	})
}

func (p *PostgresStore) History(ctx context.Context, identity string, limit int) ([]*Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, identity, type, amount, reference, counterparty, created_at
		FROM ledger_entries
		WHERE identity = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, identity, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.Identity, &e.Type, &e.Amount, &e.Reference, &e.Counterparty, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (p *PostgresStore) Events(ctx context.Context, identity string, since time.Time) ([]*Event, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, identity, event_type, amount, reference, counterparty, created_at
		FROM ledger_events
		WHERE identity = $1 AND created_at > $2
		ORDER BY id ASC
	`, identity, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.Identity, &e.EventType, &e.Amount, &e.Reference, &e.Counterparty, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (p *PostgresStore) Identities(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT identity FROM ledger_events`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		identities = append(identities, id)
	}
	return identities, rows.Err()
}
