package repository

import (
	"context"
	"errors"

	driver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"goconverse/internal/common"
)

// TxManager runs a function inside one database transaction. Repositories
// pick the transaction handle out of the context, so every repository call
// made inside fn joins the same transaction.
type TxManager interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type gormTxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) TxManager {
	return &gormTxManager{db: db}
}

func (m *gormTxManager) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// dbFrom returns the transaction handle carried by ctx, or the repository's
// own connection when the call is not transactional.
func dbFrom(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback.WithContext(ctx)
}

const mysqlLockWaitTimeout = 1205

// translate maps driver-level failures onto the shared error taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var myErr *driver.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlLockWaitTimeout {
		return common.ErrConflict.WithDetail("lock wait timeout on conversation row")
	}
	return err
}
