package stream

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/rushteam/flowml/core"
)

// SQLStream 逐行读取查询结果，列名即特征名。
// 查询在第一次调用 Next 时执行，读到结尾或调用 Close 时释放 rows。
type SQLStream struct {
	db     *sql.DB
	query  string
	args   []any
	target string

	rows    *sql.Rows
	columns []string
	done    bool
}

// IterSQL 创建 SQL 数据流；target 非空时该列作为 y 产出。
func IterSQL(db *sql.DB, query, target string, args ...any) *SQLStream {
	return &SQLStream{db: db, query: query, target: target, args: args}
}

func (s *SQLStream) Next(ctx context.Context) (Sample, error) {
	if s.done {
		return Sample{}, io.EOF
	}
	if s.rows == nil {
		if s.db == nil {
			return Sample{}, core.NewDomainError(core.ModuleStream, core.ErrorCodeInvalidInput, "stream: sql db is nil")
		}
		rows, err := s.db.QueryContext(ctx, s.query, s.args...)
		if err != nil {
			return Sample{}, fmt.Errorf("stream: query: %w", err)
		}
		columns, err := rows.Columns()
		if err != nil {
			rows.Close()
			return Sample{}, fmt.Errorf("stream: columns: %w", err)
		}
		s.rows, s.columns = rows, columns
	}

	if !s.rows.Next() {
		err := s.rows.Err()
		s.Close()
		if err != nil {
			return Sample{}, fmt.Errorf("stream: rows: %w", err)
		}
		return Sample{}, io.EOF
	}
	values := make([]any, len(s.columns))
	ptrs := make([]any, len(s.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return Sample{}, fmt.Errorf("stream: scan: %w", err)
	}

	x := make(core.Features, len(s.columns))
	var y any
	for i, col := range s.columns {
		v := values[i]
		// 驱动可能以 []byte 返回文本列
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		if col == s.target {
			y = v
			continue
		}
		x[col] = v
	}
	return Sample{X: x, Y: y}, nil
}

// Close 释放结果集；之后 Next 返回 io.EOF。
func (s *SQLStream) Close() error {
	s.done = true
	if s.rows == nil {
		return nil
	}
	err := s.rows.Close()
	s.rows = nil
	if errors.Is(err, sql.ErrConnDone) {
		return nil
	}
	return err
}
