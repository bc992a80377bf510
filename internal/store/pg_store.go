package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// documentID is the primary key of the single row holding the state.
const documentID = 1

var (
	ErrTransactionBegin    = errors.New("failed to begin transaction")
	ErrTransactionRollback = errors.New("failed to rollback transaction")
	ErrTransactionCommit   = errors.New("failed to commit transaction")
)

// PgStore keeps the state as one JSONB document in PostgreSQL.
// Update locks the row with SELECT ... FOR UPDATE, which serializes writers across processes.
type PgStore struct {
	db     *pgxpool.Pool
	strict bool
	logger *slog.Logger
}

// NewPgStore creates a PgStore. The schema must already be migrated, see Migrate.
func NewPgStore(db *pgxpool.Pool, strict bool, logger *slog.Logger) *PgStore {
	return &PgStore{
		db:     db,
		strict: strict,
		logger: logger.With("component", "pg_store"),
	}
}

func (p *PgStore) Load(ctx context.Context) (*State, error) {
	var data []byte
	err := p.db.QueryRow(ctx, `SELECT document FROM store_documents WHERE id = $1`, documentID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return p.decode(ctx, data)
}

func (p *PgStore) Save(ctx context.Context, state *State) error {
	data, err := encodeState(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO store_documents (id, document)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET document = EXCLUDED.document, version = store_documents.version + 1, updated_at = now()`,
		documentID, data)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

func (p *PgStore) Update(ctx context.Context, fn func(state *State) error) error {
	return p.withTransaction(ctx, func(tx pgx.Tx) error {
		// make sure there is a row to lock
		if _, err := tx.Exec(ctx, `
			INSERT INTO store_documents (id, document)
			VALUES ($1, '{"products":[],"sales":[]}')
			ON CONFLICT (id) DO NOTHING`, documentID); err != nil {
			return fmt.Errorf("failed to initialize state: %w", err)
		}

		var data []byte
		err := tx.QueryRow(ctx, `SELECT document FROM store_documents WHERE id = $1 FOR UPDATE`, documentID).Scan(&data)
		if err != nil {
			return fmt.Errorf("failed to lock state: %w", err)
		}
		st, err := p.decode(ctx, data)
		if err != nil {
			return err
		}

		if err := fn(st); err != nil {
			return err
		}

		out, err := encodeState(st)
		if err != nil {
			return fmt.Errorf("failed to encode state: %w", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE store_documents
			SET document = $2, version = version + 1, updated_at = now()
			WHERE id = $1`, documentID, out)
		if err != nil {
			return fmt.Errorf("failed to save state: %w", err)
		}
		return nil
	})
}

func (p *PgStore) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *PgStore) decode(ctx context.Context, data []byte) (*State, error) {
	st, err := decodeState(data)
	if err != nil {
		return healCorrupt(ctx, p.logger, p.strict, fmt.Errorf("decode document: %w", err))
	}
	return st, nil
}

func (p *PgStore) withTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionBegin, err)
	}

	err = fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w: %w", ErrTransactionRollback, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionCommit, err)
	}

	return nil
}
