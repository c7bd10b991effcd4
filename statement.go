package store

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// TotalRecordsCount is the pseudo-column carrying the unpaged match count of a page.
const TotalRecordsCount = "TotalRecordsCount"

// CountStrategy decides how a paged statement reports its total match count.
type CountStrategy interface {
	// Apply returns the paged statement text, without the window clause. unordered is the
	// statement stripped of its order by clause, ordered is the same text with the
	// effective order by clause appended.
	Apply(unordered, ordered string) string
	// MultiResult reports whether the total arrives as a separate first result set.
	MultiResult() bool
}

// WindowCount adds a count(*) over() pseudo-column to every row of the page.
type WindowCount struct{}

func (WindowCount) MultiResult() bool { return false }

func (WindowCount) Apply(unordered, ordered string) string {
	idx := findTopLevel(ordered, selectToken, false)
	if idx < 0 {
		return ordered
	}
	head := selectHead.FindStringSubmatch(ordered[idx:])
	if strings.EqualFold(head[2], "distinct") || head[3] != "" {
		// the window must count the rows left after distinct or top
		return "select count(*) over() as " + TotalRecordsCount + ", q.* from (" + unordered + ") q " +
			strings.TrimSpace(ordered[len(unordered):])
	}
	at := idx + len(head[0])
	return ordered[:at] + " count(*) over() as " + TotalRecordsCount + "," + ordered[at:]
}

// ResultSetCount sends a separate count statement ahead of the page.
type ResultSetCount struct{}

func (ResultSetCount) MultiResult() bool { return true }

func (ResultSetCount) Apply(unordered, ordered string) string {
	return "select count(*) from (" + unordered + ") resultSet; " + ordered
}

// CountStrategyFor looks a strategy up by its configuration name.
func CountStrategyFor(name string) (CountStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "window":
		return WindowCount{}, nil
	case "result_set", "resultset":
		return ResultSetCount{}, nil
	}
	return nil, fmt.Errorf("store: unknown count strategy %q", name)
}

// Statement is a statement ready for execution: text, parameters and the flags the
// execution functions need to interpret its results. A Statement belongs to a single
// caller until it is executed.
type Statement struct {
	sql             string
	base            string
	params          *Params
	prelude         string
	paginated       bool
	expectsIdentity bool
	identityColumn  string
	selectColumns   []string
	baseColumns     []string

	dialect Dialect
	count   CountStrategy
}

// NewStatement wraps caller supplied statement text.
func NewStatement(dialect Dialect, sql string, params *Params) *Statement {
	if dialect == nil {
		dialect = SQLServerDialect{}
	}
	if params == nil {
		params = NewParams()
	}
	return &Statement{
		sql:     sql,
		base:    sql,
		params:  params,
		dialect: dialect,
		count:   WindowCount{},
	}
}

func (s *Statement) SQL() string           { return s.sql }
func (s *Statement) Params() *Params       { return s.params }
func (s *Statement) Prelude() string       { return s.prelude }
func (s *Statement) Paginated() bool       { return s.paginated }
func (s *Statement) ExpectsIdentity() bool { return s.expectsIdentity }
func (s *Statement) Dialect() Dialect      { return s.dialect }

func (s *Statement) CountStrategy() CountStrategy {
	return s.count
}

// SelectColumns lists the explicitly selected column names, TotalRecordsCount included
// once a page is applied.
func (s *Statement) SelectColumns() []string {
	cols := make([]string, len(s.selectColumns))
	copy(cols, s.selectColumns)
	return cols
}

// SetPrelude sets a statement executed ahead of this one with the same parameters.
func (s *Statement) SetPrelude(prelude string) *Statement {
	s.prelude = strings.TrimSpace(prelude)
	return s
}

// AddParams merges params into the statement parameters, replacing same-named ones.
func (s *Statement) AddParams(params *Params) *Statement {
	s.params.Merge(params)
	return s
}

// Arg sets a single parameter from a plain Go value.
func (s *Statement) Arg(name string, value any) *Statement {
	s.params.Arg(name, value)
	return s
}

func (s *Statement) SetParams(params *Params) *Statement {
	if params == nil {
		params = NewParams()
	}
	s.params = params
	return s
}

// WithCountStrategy changes how a later Paginate reports the total count.
func (s *Statement) WithCountStrategy(cs CountStrategy) *Statement {
	if cs != nil {
		s.count = cs
	}
	return s
}

func (s *Statement) setSelectColumns(cols []string) {
	s.baseColumns = cols
	s.selectColumns = append([]string(nil), cols...)
}

// Paginate restricts the statement to page pageIndex of pageSize rows. It always works
// from the unpaged text so it can be applied repeatedly; pageSize 0 or a negative
// pageIndex removes any window. A non-empty orderBy replaces the statement's outermost
// order by clause. An active page needs an order by from one of the two.
func (s *Statement) Paginate(pageIndex, pageSize int, orderBy ...string) error {
	override := strings.TrimSpace(strings.Join(sliceFilter(orderBy, func(o string) bool { return !isBlank(o) }), ", "))
	active := pageIndex >= 0 && pageSize > 0

	text := trimStatement(s.base)
	unordered, clause := text, ""
	if idx := findTopLevel(text, orderByToken, true); idx >= 0 {
		unordered = strings.TrimRight(text[:idx], " \t\r\n")
		clause = strings.TrimSpace(text[idx:])
	}
	if override != "" {
		clause = "order by " + override
	}

	s.selectColumns = append([]string(nil), s.baseColumns...)

	if !active {
		s.paginated = false
		if override == "" {
			s.sql = s.base
			return nil
		}
		s.sql = unordered + " " + clause
		return nil
	}

	if clause == "" {
		return ErrInvalidPagination
	}
	if pageIndex > math.MaxInt/pageSize {
		return fmt.Errorf("%w: page %d of size %d is out of range", ErrInvalidPagination, pageIndex, pageSize)
	}

	ordered := unordered + " " + clause
	paged := s.count.Apply(unordered, ordered)
	s.sql = paged + " " + s.dialect.PaginationClause(pageIndex*pageSize, pageSize)
	s.paginated = true
	if len(s.selectColumns) > 0 {
		s.selectColumns = append(s.selectColumns, TotalRecordsCount)
	}
	return nil
}

func (s *Statement) String() string {
	if s.prelude == "" {
		return s.sql
	}
	return s.prelude + "; " + s.sql
}

var (
	orderByToken = regexp.MustCompile(`(?i)^order\s+by\b`)
	selectToken  = regexp.MustCompile(`(?i)^select\b`)
	selectHead   = regexp.MustCompile(`(?i)^select(\s+(distinct|all)\b)?(\s+top\s*(\([^()]*\)|\d+)(\s+percent\b)?(\s+with\s+ties\b)?)?`)
)

func trimStatement(sql string) string {
	return strings.TrimRight(strings.TrimSpace(sql), "; \t\r\n")
}

// findTopLevel returns the index of the first (or last) match of token sitting outside
// any parentheses and quotes, -1 when absent.
func findTopLevel(sql string, token *regexp.Regexp, last bool) int {
	depth := 0
	var quote byte
	found := -1

	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}

		switch ch {
		case '\'', '"':
			quote = ch
		case '[':
			quote = ']'
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		default:
			if depth != 0 || !wordStart(sql, i) {
				continue
			}
			if token.MatchString(sql[i:]) {
				if !last {
					return i
				}
				found = i
			}
		}
	}

	return found
}

func wordStart(s string, i int) bool {
	if i == 0 {
		return true
	}
	c := s[i-1]
	return !(c == '_' || c == '@' || c == '.' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z')
}
