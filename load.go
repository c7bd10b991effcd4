package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// LoadCsv inserts every line of csvInput into the table of repo. With a header line the
// columns are matched by field or column name, otherwise lines must list the insert
// columns of T in declaration order. Values are bound as text; empty values bind null.
func LoadCsv[K comparable, T any](ctx context.Context, repo Repository[K, T], csvInput io.Reader, withHeader bool, options ...QueryOption) (int, error) {
	r, ok := repo.(*repository[K, T])
	if !ok {
		return 0, fmt.Errorf("store: repository %T does not support csv loading", repo)
	}

	meta := r.table.Metadata()
	insertCols := ResolveColumns(meta, InsertStatement, nil, nil).Declared().Columns()

	rd := csv.NewReader(csvInput)
	rd.TrimLeadingSpace = true

	columns := insertCols
	if withHeader {
		line, err := rd.Read()
		if err != nil {
			return 0, err
		}

		columns = make([]string, len(line))
		for i, name := range line {
			name = strings.TrimSpace(name)
			col, ok := meta.Column(name)
			if !ok {
				col, ok = meta.ColumnByName(name)
			}
			if !ok || !col.InInsert {
				return 0, fmt.Errorf("columns header doesn't match the table columns: %s", name)
			}
			columns[i] = col.Column
		}
	}

	count := 0
	err := r.unitOfWork(ctx, options, func(ex Executor) error {
		for {
			line, err := rd.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if len(line) != len(columns) {
				return fmt.Errorf("column count in CSV line %d does not match table", count+1)
			}

			params := NewParams()
			for i, val := range line {
				val = strings.TrimSpace(val)
				if val == "" {
					params.Set(columns[i], Null())
					continue
				}
				params.Set(columns[i], Text(val))
			}

			st, err := r.table.InsertParams(params)
			if err != nil {
				return err
			}
			if _, err := Execute(ctx, ex, st); err != nil {
				return wrapError(err)
			}
			count++
		}
	})

	return count, err
}

// StreamInsert inserts records received from rows until the channel is closed or ctx is
// done, all inside one unit of work.
func StreamInsert[K comparable, T any](ctx context.Context, repo Repository[K, T], rows <-chan T, options ...QueryOption) (int, error) {
	r, ok := repo.(*repository[K, T])
	if !ok {
		return 0, fmt.Errorf("store: repository %T does not support stream insert", repo)
	}

	count := 0
	err := r.unitOfWork(ctx, options, func(ex Executor) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case v, ok := <-rows:
				if !ok {
					return nil
				}
				if _, err := r.insert(ctx, ex, v); err != nil {
					return err
				}
				count++
			}
		}
	})

	return count, err
}
