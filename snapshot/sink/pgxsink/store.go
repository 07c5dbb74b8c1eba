// Package pgxsink stores snapshots in PostgreSQL
package pgxsink

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/stakesnap/snapshot"
)

// Sentinel errors for store operations
var (
	ErrTransactionFailed = errors.New("transaction failed")
	ErrSnapshotFailed    = errors.New("snapshot insert failed")
	ErrCopyFailed        = errors.New("bulk copy operation failed")
	ErrQueryFailed       = errors.New("query failed")
	ErrNoSnapshot        = errors.New("no snapshot stored")
	ErrSchemaMissing     = errors.New("snapshot schema missing, run migrate first")
	ErrDeleteFailed      = errors.New("snapshot delete failed")
)

// Store implements snapshot.Sink using pgx
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store with an existing connection pool
// Returns the store and a closer function
func New(pool *pgxpool.Pool) (*Store, func()) {
	store := &Store{pool: pool}
	closer := func() {
		pool.Close()
	}
	return store, closer
}

// Check verifies that the snapshot tables exist without reading any rows
func (s *Store) Check(ctx context.Context) error {
	for _, table := range []string{"snapshots", "stakes"} {
		rows, err := s.pool.Query(ctx, "SELECT 1 FROM "+pgx.Identifier{table}.Sanitize()+" LIMIT 0")
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSchemaMissing, table, err)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSchemaMissing, table, err)
		}
	}
	return nil
}

// Write stores stakes as a new snapshot in one transaction using pgx CopyFrom
func (s *Store) Write(ctx context.Context, stakes []snapshot.Stake) error {
	_, err := s.WriteSnapshot(ctx, stakes)
	return err
}

// WriteSnapshot is Write that also returns the id of the new snapshot
func (s *Store) WriteSnapshot(ctx context.Context, stakes []snapshot.Stake) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // No-op if commit succeeds

	var id int64
	err = tx.QueryRow(ctx, `INSERT INTO snapshots (delegators) VALUES ($1) RETURNING id`, len(stakes)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSnapshotFailed, err)
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"stakes"},
		[]string{"snapshot_id", "delegator", "amount"},
		pgx.CopyFromRows(stakesToRows(id, stakes)),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCopyFailed, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	return id, nil
}

// DeleteSnapshot removes a snapshot together with its stakes
func (s *Store) DeleteSnapshot(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM snapshots WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}
	return nil
}

// latestSnapshot returns the stakes of the most recent snapshot ordered by delegator
func (s *Store) latestSnapshot(ctx context.Context) (int64, []snapshot.Stake, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM snapshots ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, ErrNoSnapshot
	}
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT delegator, amount FROM stakes WHERE snapshot_id = $1 ORDER BY delegator COLLATE "C"`, id)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	stakes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (snapshot.Stake, error) {
		var (
			delegator string
			amount    pgtype.Numeric
		)
		if err := row.Scan(&delegator, &amount); err != nil {
			return snapshot.Stake{}, err
		}
		v, err := numericToUint256(amount)
		if err != nil {
			return snapshot.Stake{}, err
		}
		return snapshot.Stake{Delegator: delegator, Amount: v}, nil
	})
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return id, stakes, nil
}

// stakesToRows converts stakes directly to [][]any for pgx.CopyFromRows
func stakesToRows(snapshotID int64, stakes []snapshot.Stake) [][]any {
	rows := make([][]any, len(stakes))
	for i, st := range stakes {
		rows[i] = []any{
			snapshotID,
			st.Delegator,
			pgtype.Numeric{Int: st.Amount.ToBig(), Exp: 0, Valid: true},
		}
	}
	return rows
}

func numericToUint256(n pgtype.Numeric) (*uint256.Int, error) {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite {
		return nil, fmt.Errorf("%w: not a finite number", snapshot.ErrInvalidAmount)
	}

	v := new(big.Int).Set(n.Int)
	switch {
	case n.Exp > 0:
		v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.Exp)), nil))
	case n.Exp < 0:
		// NUMERIC(78, 0) values may still arrive with trailing zeros folded into a negative exponent
		div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-n.Exp)), nil)
		var rem big.Int
		v.QuoRem(v, div, &rem)
		if rem.Sign() != 0 {
			return nil, fmt.Errorf("%w: fractional amount", snapshot.ErrInvalidAmount)
		}
	}

	out, overflow := uint256.FromBig(v)
	if overflow || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s out of range", snapshot.ErrInvalidAmount, v)
	}
	return out, nil
}
