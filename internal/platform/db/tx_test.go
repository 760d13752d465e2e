package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type stubTx struct {
	pgx.Tx
	commits   int
	rollbacks int
}

func (t *stubTx) Commit(context.Context) error   { t.commits++; return nil }
func (t *stubTx) Rollback(context.Context) error { t.rollbacks++; return nil }

func TestWithTxJoinsEnclosingTransaction(t *testing.T) {
	tx := &stubTx{}
	ctx := context.WithValue(context.Background(), txKey{}, pgx.Tx(tx))

	var outer, inner pgx.Tx
	err := WithTx(ctx, nil, func(ctx context.Context, got pgx.Tx) error {
		outer = got
		return WithTx(ctx, nil, func(_ context.Context, got pgx.Tx) error {
			inner = got
			return nil
		})
	})
	require.NoError(t, err)
	require.Same(t, tx, outer)
	require.Same(t, tx, inner)

	// Joined calls never commit or roll back; the opener owns the outcome.
	require.Zero(t, tx.commits)
	require.Zero(t, tx.rollbacks)
}

func TestWithTxJoinedErrorPropagates(t *testing.T) {
	tx := &stubTx{}
	ctx := context.WithValue(context.Background(), txKey{}, pgx.Tx(tx))

	boom := errors.New("boom")
	err := WithTx(ctx, nil, func(context.Context, pgx.Tx) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Zero(t, tx.commits)
	require.Zero(t, tx.rollbacks)
}

func TestTxFromContextWithoutTransaction(t *testing.T) {
	_, ok := TxFromContext(context.Background())
	require.False(t, ok)
}
