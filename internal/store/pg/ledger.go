package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// PGTokenLedgerStore implements store.TokenLedgerStore. Grounded on
// original_source/app/ai/budget.py's get_daily_token_usage query shape.
type PGTokenLedgerStore struct {
	db *sql.DB
}

func NewPGTokenLedgerStore(db *sql.DB) *PGTokenLedgerStore {
	return &PGTokenLedgerStore{db: db}
}

func (s *PGTokenLedgerStore) Log(ctx context.Context, e *store.TokenLedgerEntry) error {
	if e.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return store.NewError(store.KindFatal, "uuid gen", err)
		}
		e.ID = id
	}
	e.TokensTotal = e.TokensInput + e.TokensOutput
	meta := e.Meta
	if meta == nil {
		meta = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_ledger (id, scope, provider, tokens_input, tokens_output, tokens_total, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		e.ID, e.Scope, e.Provider, e.TokensInput, e.TokensOutput, e.TokensTotal, []byte(meta))
	if err != nil {
		return store.NewError(store.KindTransient, "ledger log", err)
	}
	return nil
}

// DailyUsage sums tokens_total for a scope on the UTC calendar date of
// `day`.
func (s *PGTokenLedgerStore) DailyUsage(ctx context.Context, scope store.TokenScope, day time.Time) (int, error) {
	var total sql.NullInt64
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(tokens_total), 0) FROM token_ledger
		WHERE scope = $1 AND created_at::date = $2::date`, scope, day.UTC())
	if err := row.Scan(&total); err != nil {
		return 0, store.NewError(store.KindTransient, "ledger daily usage", err)
	}
	return int(total.Int64), nil
}

func (s *PGTokenLedgerStore) TodayByScope(ctx context.Context) (map[store.TokenScope]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scope, COALESCE(SUM(tokens_total), 0) FROM token_ledger
		WHERE created_at >= date_trunc('day', now()) GROUP BY scope`)
	if err != nil {
		return nil, store.NewError(store.KindTransient, "ledger today by scope", err)
	}
	defer rows.Close()
	out := map[store.TokenScope]int{}
	for rows.Next() {
		var sc store.TokenScope
		var n int
		if err := rows.Scan(&sc, &n); err != nil {
			return nil, store.NewError(store.KindTransient, "ledger scan", err)
		}
		out[sc] = n
	}
	return out, rows.Err()
}
