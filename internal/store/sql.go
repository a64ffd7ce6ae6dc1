package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cafe-pos/internal/errors"
	"cafe-pos/internal/logging"

	"github.com/jmoiron/sqlx"
)

// SQLStore implements Store on top of sqlx for MySQL and SQLite
type SQLStore struct {
	db     *sqlx.DB
	logger *logging.Logger
	ops    *sqlOps
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx
type queryer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

type sqlOps struct {
	q      queryer
	logger *logging.Logger
}

// NewSQLStore wraps an open connection
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return NewSQLStoreWithLogger(db, logging.NewDefaultLogger())
}

// NewSQLStoreWithLogger wraps an open connection with a custom logger
func NewSQLStoreWithLogger(db *sqlx.DB, logger *logging.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: logger,
		ops:    &sqlOps{q: db, logger: logger},
	}
}

// DB returns the underlying connection
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

// Migrate creates every catalog table that does not exist yet
func (s *SQLStore) Migrate(ctx context.Context) error {
	done := s.logger.LogOperationStart("migrate", map[string]interface{}{"driver": s.db.DriverName()})

	for _, t := range Catalog {
		stmt := t.CreateStatement(s.db.DriverName())
		if _, err := s.ops.exec(ctx, stmt); err != nil {
			err = errors.WrapError(err, fmt.Sprintf("failed to create table %s", t.Name))
			done(err)
			return err
		}
	}

	done(nil)
	return nil
}

func (s *SQLStore) FindFirst(ctx context.Context, t Table) (Record, error) {
	return s.ops.FindFirst(ctx, t)
}

func (s *SQLStore) FindAll(ctx context.Context, t Table) ([]Record, error) {
	return s.ops.FindAll(ctx, t)
}

func (s *SQLStore) FindByOrderIDs(ctx context.Context, t Table, ids []int64) ([]Record, error) {
	return s.ops.FindByOrderIDs(ctx, t, ids)
}

func (s *SQLStore) ListIDs(ctx context.Context, t Table) ([]int64, error) {
	return s.ops.ListIDs(ctx, t)
}

// WithTx runs fn inside a database transaction
func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.WrapError(err, "failed to begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.WithField("error", rollbackErr.Error()).Error("Failed to rollback transaction")
			}
		}
	}()

	if err = fn(&sqlOps{q: tx, logger: s.logger}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return errors.WrapError(err, "failed to commit transaction")
	}
	return nil
}

func selectColumns(t Table) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = quote(c.Name)
	}
	return strings.Join(cols, ", ")
}

func (o *sqlOps) FindFirst(ctx context.Context, t Table) (Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY `id` LIMIT 1", selectColumns(t), quote(t.Name))
	recs, err := o.query(ctx, t, query)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

func (o *sqlOps) FindAll(ctx context.Context, t Table) ([]Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY `id`", selectColumns(t), quote(t.Name))
	return o.query(ctx, t, query)
}

func (o *sqlOps) FindByOrderIDs(ctx context.Context, t Table, ids []int64) ([]Record, error) {
	if err := requireOrderColumn(t); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		fmt.Sprintf("SELECT %s FROM %s WHERE `orderId` IN (?) ORDER BY `id`", selectColumns(t), quote(t.Name)), ids)
	if err != nil {
		return nil, errors.WrapError(err, "failed to expand order id list")
	}
	return o.query(ctx, t, query, args...)
}

func (o *sqlOps) ListIDs(ctx context.Context, t Table) ([]int64, error) {
	query := fmt.Sprintf("SELECT `id` FROM %s ORDER BY `id`", quote(t.Name))

	startTime := time.Now()
	var ids []int64
	err := sqlx.SelectContext(ctx, o.q, &ids, query)
	o.logger.LogSQLExecution(query, time.Since(startTime), int64(len(ids)), err)
	if err != nil {
		return nil, errors.WrapError(err, fmt.Sprintf("failed to list ids of %s", t.Name))
	}
	return ids, nil
}

func (o *sqlOps) DeleteAll(ctx context.Context, t Table) (int64, error) {
	return o.exec(ctx, fmt.Sprintf("DELETE FROM %s", quote(t.Name)))
}

func (o *sqlOps) DeleteByOrderIDs(ctx context.Context, t Table, ids []int64) (int64, error) {
	if err := requireOrderColumn(t); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(fmt.Sprintf("DELETE FROM %s WHERE `orderId` IN (?)", quote(t.Name)), ids)
	if err != nil {
		return 0, errors.WrapError(err, "failed to expand order id list")
	}
	return o.exec(ctx, query, args...)
}

func (o *sqlOps) Insert(ctx context.Context, t Table, rec Record) (int64, error) {
	row, err := t.Normalize(rec)
	if err != nil {
		return 0, errors.NewAppError(errors.ErrorTypeValidation, err.Error(), err)
	}

	var cols, marks []string
	var args []interface{}
	for _, c := range t.Columns {
		v := row[c.Name]
		if v == nil {
			continue
		}
		cols = append(cols, quote(c.Name))
		marks = append(marks, "?")
		args = append(args, v)
	}
	if len(cols) == 0 {
		return 0, errors.NewAppError(errors.ErrorTypeValidation, fmt.Sprintf("empty %s record", t.Name), nil)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(t.Name), strings.Join(cols, ", "), strings.Join(marks, ", "))

	startTime := time.Now()
	result, err := o.q.ExecContext(ctx, query, args...)
	o.logger.LogSQLExecution(query, time.Since(startTime), 1, err)
	if err != nil {
		return 0, errors.WrapError(err, fmt.Sprintf("failed to insert into %s", t.Name))
	}

	if id, ok := row.Int64("id"); ok {
		return id, nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.WrapError(err, "failed to read inserted id")
	}
	return id, nil
}

func (o *sqlOps) InsertMany(ctx context.Context, t Table, recs []Record) (int, error) {
	for i, rec := range recs {
		if _, err := o.Insert(ctx, t, rec); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}

func (o *sqlOps) query(ctx context.Context, t Table, query string, args ...interface{}) ([]Record, error) {
	startTime := time.Now()
	rows, err := o.q.QueryxContext(ctx, query, args...)
	if err != nil {
		o.logger.LogSQLExecution(query, time.Since(startTime), 0, err)
		return nil, errors.WrapError(err, fmt.Sprintf("failed to query %s", t.Name))
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, errors.WrapError(err, fmt.Sprintf("failed to scan %s row", t.Name))
		}
		rec, err := t.Decode(row)
		if err != nil {
			return nil, errors.NewAppError(errors.ErrorTypeSQL, err.Error(), err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, fmt.Sprintf("failed to read %s rows", t.Name))
	}

	o.logger.LogSQLExecution(query, time.Since(startTime), int64(len(recs)), nil)
	return recs, nil
}

func (o *sqlOps) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	startTime := time.Now()
	result, err := o.q.ExecContext(ctx, query, args...)

	var affected int64
	if result != nil {
		affected, _ = result.RowsAffected()
	}
	o.logger.LogSQLExecution(query, time.Since(startTime), affected, err)

	if err != nil {
		return 0, errors.WrapError(err, "failed to execute statement")
	}
	return affected, nil
}

var _ Store = (*SQLStore)(nil)
var _ Tx = (*sqlOps)(nil)
