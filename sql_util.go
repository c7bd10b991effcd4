package store

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	mysqlDuplicateEntry    = 1062
	mssqlUniqueConstraint  = 2627
	mssqlDuplicateKeyIndex = 2601
)

// isUniqueViolation reports whether err is a unique or primary key constraint violation
// raised by one of the supported drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgerrcode.UniqueViolation
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == mssqlUniqueConstraint || msErr.Number == mssqlDuplicateKeyIndex
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
		// primary result code only, without extended codes enabled
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}

	return false
}

// wrapError maps driver errors onto the package sentinels, keeping the original message.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	errMap := map[error]error{
		sql.ErrNoRows: ErrKeynotFound,
	}

	for g, e := range errMap {
		if errors.Is(err, g) {
			return fmt.Errorf("%w. %s", e, err.Error())
		}
	}

	if !errors.Is(err, ErrKeyAlreadyExists) && isUniqueViolation(err) {
		return fmt.Errorf("%w. %s", ErrKeyAlreadyExists, err.Error())
	}

	return err
}

// MakeSortClause turns "+field" / "-field" sort keys into an order by list. sortFieldMap
// translates lower-cased keys into column names.
func MakeSortClause(sorter []string, sortFieldMap map[string]string) string {
	if len(sorter) == 0 {
		return ""
	}

	var srt []string
	for _, s := range sorter {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}

		op := ""
		field := strings.ToLower(s)
		if s[:1] == "-" || s[:1] == "+" {
			op = s[:1]
			field = strings.ToLower(s[1:])
		}

		if op == "-" {
			op = "DESC"
		} else {
			op = "ASC"
		}

		if sortFieldMap != nil {
			if mf, ok := sortFieldMap[field]; ok {
				field = mf
			}
		}

		srt = append(srt, fmt.Sprintf("%s %s", field, op))
	}

	return strings.Join(srt, ",")
}

type FilterNull interface {
	IsNull() bool
}

type filterNull bool

func (fn filterNull) IsNull() bool {
	return bool(fn)
}

func FilterNullFrom(isNull bool) FilterNull {
	return filterNull(isNull)
}

type FilterStringContains interface {
	Contains() string
}

type filterStringContains string

func (fs filterStringContains) Contains() string {
	return fmt.Sprintf("%%%s%%", fs)
}

func FilterStringContainsFrom(str string) FilterStringContains {
	return filterStringContains(str)
}

// ParseFilterMapIntoWhereClause builds a condition from a column keyed filter map. Keys
// are visited in sorted order and every value is bound as a named parameter f<n>.
// Slices become IN lists, FilterNull and FilterStringContains values become IS [NOT]
// NULL and like tests. Empty slices are ignored.
func ParseFilterMapIntoWhereClause(filterMap map[string]any, dialect Dialect) (whereClause string, params *Params, err error) {
	params = NewParams()
	keys := make([]string, 0, len(filterMap))
	for k := range filterMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conds []string
	next := func(v any) (string, error) {
		name := fmt.Sprintf("f%d", params.Len())
		val, err := ValueOf(v)
		if err != nil {
			return "", err
		}
		params.Set(name, val)
		return dialect.Placeholder(name), nil
	}

	for _, k := range keys {
		val := filterMap[k]

		if fnull, ok := val.(FilterNull); ok {
			isNot := ""
			if !fnull.IsNull() {
				isNot = "NOT "
			}
			conds = append(conds, fmt.Sprintf("%s IS %sNULL", k, isNot))
			continue
		}

		if fcontain, ok := val.(FilterStringContains); ok {
			ph, err := next(fcontain.Contains())
			if err != nil {
				return "", nil, fmt.Errorf("filter %s: %w", k, err)
			}
			conds = append(conds, fmt.Sprintf("%s like %s", k, ph))
			continue
		}

		vval := reflect.ValueOf(val)
		if vval.Kind() != reflect.Slice || vval.Type().Elem().Kind() == reflect.Uint8 {
			ph, err := next(val)
			if err != nil {
				return "", nil, fmt.Errorf("filter %s: %w", k, err)
			}
			conds = append(conds, fmt.Sprintf("%s = %s", k, ph))
			continue
		}

		if vval.Len() == 0 {
			continue
		}

		f, err := parameterizedFilterCriteriaSlice(k, vval, next)
		if err != nil {
			return "", nil, fmt.Errorf("filter %s: %w", k, err)
		}
		conds = append(conds, f)
	}

	return strings.Join(conds, " AND "), params, nil
}

func parameterizedFilterCriteriaSlice(fieldname string, values reflect.Value, next func(any) (string, error)) (string, error) {
	if values.Len() == 1 {
		ph, err := next(values.Index(0).Interface())
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %s", fieldname, ph), nil
	}

	phs := make([]string, values.Len())
	for i := range phs {
		ph, err := next(values.Index(i).Interface())
		if err != nil {
			return "", err
		}
		phs[i] = ph
	}
	return fmt.Sprintf("%s IN(%s)", fieldname, strings.Join(phs, ",")), nil
}
