package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "invoices_invoice_number_key"}
	assert.True(t, IsUniqueViolation(dup))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert invoice: %w", dup)))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}

type joinedTx struct{ pgx.Tx }

func TestWithTxJoinsTransactionFromContext(t *testing.T) {
	outer := &joinedTx{}
	ctx := context.WithValue(context.Background(), txKey{}, pgx.Tx(outer))

	var got pgx.Tx
	err := WithTx(ctx, nil, func(ctx context.Context, tx pgx.Tx) error {
		got = tx
		inner, ok := TxFromContext(ctx)
		require.True(t, ok)
		assert.Same(t, outer, inner)
		return nil
	})
	require.NoError(t, err)
	assert.Same(t, outer, got)

	boom := errors.New("boom")
	err = WithTx(ctx, nil, func(context.Context, pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestTxFromContextEmpty(t *testing.T) {
	_, ok := TxFromContext(context.Background())
	assert.False(t, ok)
}
