package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newItemsDB(t *testing.T) Database {
	t.Helper()
	db := newFileDB(t)
	require.NoError(t, db.Session(context.Background()).
		Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)").Error)
	return db
}

func countItems(t *testing.T, db Database) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Session(context.Background()).Raw("SELECT COUNT(*) FROM items").Scan(&count).Error)
	return count
}

func TestTransaction_CommitTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	db := newItemsDB(t)

	txn, err := NewTransaction(ctx, db)
	require.NoError(t, err)
	require.NoError(t, txn.Session().Exec("INSERT INTO items (name) VALUES (?)", "a").Error)

	require.NoError(t, txn.Commit())
	assert.NoError(t, txn.Commit())
	assert.NoError(t, txn.Rollback())
	assert.Equal(t, int64(1), countItems(t, db))
}

func TestTransaction_Rollback(t *testing.T) {
	ctx := context.Background()
	db := newItemsDB(t)

	txn, err := NewTransaction(ctx, db)
	require.NoError(t, err)
	require.NoError(t, txn.Session().Exec("INSERT INTO items (name) VALUES (?)", "a").Error)
	require.NoError(t, txn.Rollback())

	assert.Equal(t, int64(0), countItems(t, db))
}

func TestWithTransaction_Commits(t *testing.T) {
	db := newItemsDB(t)

	err := WithTransaction(context.Background(), db, func(tx *gorm.DB) error {
		if err := tx.Exec("INSERT INTO items (name) VALUES (?)", "a").Error; err != nil {
			return err
		}
		return tx.Exec("INSERT INTO items (name) VALUES (?)", "b").Error
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2), countItems(t, db))
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newItemsDB(t)
	boom := errors.New("boom")

	err := WithTransaction(context.Background(), db, func(tx *gorm.DB) error {
		if err := tx.Exec("INSERT INTO items (name) VALUES (?)", "a").Error; err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), countItems(t, db))
}

func TestWithTransaction_RollsBackOnConstraintViolation(t *testing.T) {
	db := newItemsDB(t)

	err := WithTransaction(context.Background(), db, func(tx *gorm.DB) error {
		if err := tx.Exec("INSERT INTO items (name) VALUES (?)", "a").Error; err != nil {
			return err
		}
		return tx.Exec("INSERT INTO items (name) VALUES (NULL)").Error
	})

	require.Error(t, err)
	assert.Equal(t, int64(0), countItems(t, db))
}

func TestWithTransaction_RollsBackOnCancel(t *testing.T) {
	db := newItemsDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := WithTransaction(ctx, db, func(tx *gorm.DB) error {
		if err := tx.Exec("INSERT INTO items (name) VALUES (?)", "a").Error; err != nil {
			return err
		}
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), countItems(t, db))
}

func TestWithTransaction_RollsBackOnPanic(t *testing.T) {
	db := newItemsDB(t)

	assert.Panics(t, func() {
		_ = WithTransaction(context.Background(), db, func(tx *gorm.DB) error {
			_ = tx.Exec("INSERT INTO items (name) VALUES (?)", "a").Error
			panic("boom")
		})
	})
	assert.Equal(t, int64(0), countItems(t, db))
}

func TestWithTransactionResult(t *testing.T) {
	db := newItemsDB(t)

	id, err := WithTransactionResult(context.Background(), db, func(tx *gorm.DB) (int64, error) {
		if err := tx.Exec("INSERT INTO items (name) VALUES (?)", "a").Error; err != nil {
			return 0, err
		}
		var id int64
		err := tx.Raw("SELECT id FROM items WHERE name = ?", "a").Scan(&id).Error
		return id, err
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}
