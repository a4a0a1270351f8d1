package services

import (
	"context"
	"database/sql"
	"fmt"
)

// runInTx выполняет fn внутри транзакции. Все операторские операции одного
// турнира начинаются с SELECT ... FOR UPDATE его строки, поэтому конкурентные
// вызовы сериализуются на уровне БД.
func runInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	// nil db означает работу без транзакций: юнит-тесты подставляют
	// репозитории, которым SQLExecutor не нужен.
	if db == nil {
		return fn(nil)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
			}
		} else {
			if cErr := tx.Commit(); cErr != nil {
				err = fmt.Errorf("failed to commit transaction: %w", cErr)
			}
		}
	}()
	return fn(tx)
}
