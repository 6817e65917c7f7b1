package common

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// GetByID - универсальная функция для получения сущности по ID
func GetByID[T any](ctx context.Context, db sqlx.QueryerContext, table string, id interface{}, notFoundErr error) (*T, error) {
	var entity T
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = $1", table)

	if err := sqlx.GetContext(ctx, db, &entity, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundErr
		}
		return nil, fmt.Errorf("get by id from %s: %w", table, err)
	}

	return &entity, nil
}

// GetOwned возвращает сущность, только если она принадлежит владельцу.
func GetOwned[T any](ctx context.Context, db sqlx.QueryerContext, table, ownerColumn string, id, ownerID interface{}, notFoundErr error) (*T, error) {
	var entity T
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = $1 AND %s = $2", table, ownerColumn)

	if err := sqlx.GetContext(ctx, db, &entity, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundErr
		}
		return nil, fmt.Errorf("get owned from %s: %w", table, err)
	}

	return &entity, nil
}

// DeleteOwned удаляет строку владельца; notFoundErr, если ничего не удалено.
func DeleteOwned(ctx context.Context, db sqlx.ExecerContext, table, ownerColumn string, id, ownerID interface{}, notFoundErr error) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND %s = $2", table, ownerColumn)
	res, err := db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return ExpectAffected(res, notFoundErr)
}

// ExpectAffected возвращает notFoundErr, если запрос не затронул ни одной строки.
func ExpectAffected(res sql.Result, notFoundErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}

// Filter собирает WHERE с позиционными плейсхолдерами Postgres.
type Filter struct {
	clauses []string
	args    []interface{}
}

// Add добавляет условие; каждый "?" в выражении заменяется на один и тот же $N.
func (f *Filter) Add(expr string, arg interface{}) {
	f.args = append(f.args, arg)
	f.clauses = append(f.clauses, strings.ReplaceAll(expr, "?", fmt.Sprintf("$%d", len(f.args))))
}

// AddRaw добавляет условие без аргументов.
func (f *Filter) AddRaw(expr string) {
	f.clauses = append(f.clauses, expr)
}

// Where возвращает " WHERE ..." или пустую строку.
func (f *Filter) Where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

// Args возвращает аргументы фильтра.
func (f *Filter) Args() []interface{} {
	return f.args
}

// Page добавляет LIMIT/OFFSET и возвращает запрос с аргументами.
func (f *Filter) Page(query string, limit, offset int) (string, []interface{}) {
	args := append(append([]interface{}{}, f.args...), limit, offset)
	return fmt.Sprintf("%s LIMIT $%d OFFSET $%d", query, len(args)-1, len(args)), args
}

// BatchInserter - массовая вставка, устраняет N+1 при вставке в цикле
type BatchInserter struct {
	tx          sqlx.ExecerContext
	query       string
	suffix      string
	batchSize   int
	values      []interface{}
	rowCount    int
	fieldsCount int
}

// NewBatchInserter создает новый batch inserter
func NewBatchInserter(tx sqlx.ExecerContext, baseQuery string, fieldsCount int, batchSize int) *BatchInserter {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &BatchInserter{
		tx:          tx,
		query:       baseQuery,
		batchSize:   batchSize,
		values:      make([]interface{}, 0, batchSize*fieldsCount),
		fieldsCount: fieldsCount,
	}
}

// OnConflict задаёт хвост запроса, например "ON CONFLICT (...) DO UPDATE ...".
func (bi *BatchInserter) OnConflict(suffix string) *BatchInserter {
	bi.suffix = suffix
	return bi
}

// Add добавляет строку для вставки
func (bi *BatchInserter) Add(ctx context.Context, rowValues ...interface{}) error {
	if len(rowValues) != bi.fieldsCount {
		return fmt.Errorf("expected %d fields, got %d", bi.fieldsCount, len(rowValues))
	}

	bi.values = append(bi.values, rowValues...)
	bi.rowCount++

	if bi.rowCount >= bi.batchSize {
		return bi.Flush(ctx)
	}

	return nil
}

// Flush выполняет вставку накопленных значений
func (bi *BatchInserter) Flush(ctx context.Context) error {
	if bi.rowCount == 0 {
		return nil
	}

	query := bi.query + " VALUES " + Placeholders(bi.rowCount, bi.fieldsCount)
	if bi.suffix != "" {
		query += " " + bi.suffix
	}

	if _, err := bi.tx.ExecContext(ctx, query, bi.values...); err != nil {
		return fmt.Errorf("batch insert: %w", err)
	}

	bi.values = bi.values[:0]
	bi.rowCount = 0

	return nil
}

// Placeholders генерирует ($1, $2), ($3, $4), ... для rows строк по fields полей.
func Placeholders(rows, fields int) string {
	var b strings.Builder
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < fields; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*fields+j+1)
		}
		b.WriteByte(')')
	}
	return b.String()
}

// WithTransaction выполняет функцию внутри транзакции с правильной обработкой ошибок
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
