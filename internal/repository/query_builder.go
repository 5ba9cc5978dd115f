package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scholarbridge-api/internal/models"
)

var (
	// ErrUnsupportedField is returned for filters or orders on fields the
	// collection does not expose.
	ErrUnsupportedField = errors.New("unsupported query field")
	// ErrUnsupportedOperator is returned for unknown comparison operators.
	ErrUnsupportedOperator = errors.New("unsupported query operator")
)

var sqlOperators = map[models.FilterOp]string{
	models.OpEq:  "=",
	models.OpLt:  "<",
	models.OpLte: "<=",
	models.OpGt:  ">",
	models.OpGte: ">=",
}

// collectionSchema maps document field names to SQL columns for one table.
type collectionSchema struct {
	table   string
	columns string
	fields  map[string]string
}

func (s collectionSchema) column(field string) (string, error) {
	col, ok := s.fields[field]
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrUnsupportedField, s.table, field)
	}
	return col, nil
}

// selectSQL renders q as a parameterised SELECT.
func (s collectionSchema) selectSQL(q models.Query) (string, []interface{}, error) {
	var (
		where []string
		args  []interface{}
	)
	for _, f := range q.Filters {
		col, err := s.column(f.Field)
		if err != nil {
			return "", nil, err
		}
		op, ok := sqlOperators[f.Op]
		if !ok {
			return "", nil, fmt.Errorf("%w: %q", ErrUnsupportedOperator, f.Op)
		}
		args = append(args, f.Value)
		where = append(where, fmt.Sprintf("%s %s $%d", col, op, len(args)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", s.columns, s.table)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if q.Order != nil {
		col, err := s.column(q.Order.Field)
		if err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if q.Order.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s, id ASC", col, dir)
	} else {
		b.WriteString(" ORDER BY id ASC")
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), args, nil
}

func selectDocuments[T any](ctx context.Context, db *sqlx.DB, s collectionSchema, q models.Query) ([]T, error) {
	query, args, err := s.selectSQL(q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0)
	if err := db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	return out, nil
}

func getDocument[T any](ctx context.Context, db *sqlx.DB, s collectionSchema, id string) (*T, error) {
	var doc T
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", s.columns, s.table)
	if err := db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// deleteDocument removes one row, returning sql.ErrNoRows when nothing matched.
func deleteDocument(ctx context.Context, db *sqlx.DB, table, id string) error {
	res, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return expectAffected(res, table)
}

func searchPattern(term string) string {
	return "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
}

func expectAffected(res sql.Result, table string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", table, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
