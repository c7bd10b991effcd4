package store

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/iancoleman/strcase"
)

// DBTable is the marker field carrying the table descriptor of a record type.
//
//	type Customer struct {
//		store.DBTable `schema:"dbo" name:"Customers" orderby:"Name asc" exclude:"Secret"`
//		...
//	}
type DBTable struct{}

var dbTableType = reflect.TypeOf(DBTable{})

// TableDescriber lets a record type supply its table descriptor without struct tags.
type TableDescriber interface {
	TableDescriptor() TableDescriptor
}

// ColumnDescriber lets a record type supply its column descriptors without struct tags.
// Descriptors are matched to struct fields by ColumnDescriptor.Field.
type ColumnDescriber interface {
	ColumnDescriptors() []ColumnDescriptor
}

type TableDescriptor struct {
	Schema         string
	Name           string
	DefaultOrderBy string
	Excluded       []string
}

// NewTableDescriptor builds a TableDescriptor, trimming the excluded column names and
// discarding empty entries.
func NewTableDescriptor(name, defaultOrderBy string, excluded ...string) TableDescriptor {
	td := TableDescriptor{
		Name:           strings.TrimSpace(name),
		DefaultOrderBy: strings.TrimSpace(defaultOrderBy),
	}

	for _, ex := range excluded {
		ex = strings.TrimSpace(ex)
		if ex != "" {
			td.Excluded = append(td.Excluded, ex)
		}
	}

	return td
}

func (td TableDescriptor) FullName() string {
	name := td.Name
	if td.Schema != "" {
		name = fmt.Sprintf("%s.%s", td.Schema, td.Name)
	}
	return name
}

func (td TableDescriptor) IsExcluded(column string) bool {
	return sliceContains(td.Excluded, column)
}

type ColumnKind int

const (
	Normal ColumnKind = iota
	ForeignKey
	AutoGeneratedPrimaryKey
	NormalPrimaryKey
	ViewColumn
)

func (k ColumnKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case ForeignKey:
		return "foreign_key"
	case AutoGeneratedPrimaryKey:
		return "auto_primary_key"
	case NormalPrimaryKey:
		return "primary_key"
	case ViewColumn:
		return "view"
	default:
		return fmt.Sprintf("ColumnKind(%d)", int(k))
	}
}

func (k ColumnKind) IsPrimaryKey() bool {
	return k == AutoGeneratedPrimaryKey || k == NormalPrimaryKey
}

type ColumnDescriptor struct {
	Field    string
	Column   string
	Kind     ColumnKind
	InSelect bool
	InInsert bool
	InUpdate bool
	InDelete bool

	index []int
	typ   reflect.Type
}

// NewColumn returns a descriptor whose include flags are derived from kind.
func NewColumn(field, column string, kind ColumnKind) ColumnDescriptor {
	c := ColumnDescriptor{
		Field:    field,
		Column:   column,
		Kind:     kind,
		InSelect: true,
		InDelete: true,
	}

	switch kind {
	case AutoGeneratedPrimaryKey, ViewColumn:
	default:
		c.InInsert = true
		c.InUpdate = true
	}

	return c
}

// Includes reports whether the column takes part in statements of the given kind.
func (c ColumnDescriptor) Includes(kind StatementKind) bool {
	switch kind {
	case SelectStatement:
		return c.InSelect
	case InsertStatement:
		return c.InInsert
	case UpdateStatement:
		return c.InUpdate
	case DeleteStatement:
		return c.InDelete
	}
	return false
}

// NamingStrategy derives a database column name from a struct field name when the
// db tag leaves it empty.
type NamingStrategy func(field string) string

var (
	NameAsField      NamingStrategy = func(s string) string { return s }
	NameSnake        NamingStrategy = strcase.ToSnake
	NameScreamSnake  NamingStrategy = strcase.ToScreamingSnake
	NameCamel        NamingStrategy = strcase.ToCamel
	NameLowerCamel   NamingStrategy = strcase.ToLowerCamel
	namingStrategies                = map[string]NamingStrategy{
		"":                NameAsField,
		"field":           NameAsField,
		"snake":           NameSnake,
		"screaming_snake": NameScreamSnake,
		"camel":           NameCamel,
		"lower_camel":     NameLowerCamel,
	}
)

// NamingStrategyFor looks a strategy up by its configuration name.
func NamingStrategyFor(name string) (NamingStrategy, error) {
	ns, ok := namingStrategies[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("store: unknown naming strategy %q", name)
	}
	return ns, nil
}

func parseTableTag(field reflect.StructField) (TableDescriptor, bool) {
	name := field.Tag.Get("name")
	if strings.TrimSpace(name) == "" {
		return TableDescriptor{}, false
	}

	var excluded []string
	if ex, ok := field.Tag.Lookup("exclude"); ok {
		excluded = strings.Split(ex, ",")
	}

	td := NewTableDescriptor(name, field.Tag.Get("orderby"), excluded...)
	td.Schema = strings.TrimSpace(field.Tag.Get("schema"))
	return td, true
}

// parseModel walks the struct fields of model, promoted fields of embedded structs
// included. Outer fields are visited first so that they shadow embedded ones.
func parseModel(model reflect.Type, naming NamingStrategy) (table TableDescriptor, hasTable bool, cols []ColumnDescriptor) {
	type level struct {
		typ   reflect.Type
		index []int
	}

	queue := []level{{typ: model}}
	for len(queue) > 0 {
		lv := queue[0]
		queue = queue[1:]

		for i := 0; i < lv.typ.NumField(); i++ {
			field := lv.typ.Field(i)
			index := append(append([]int{}, lv.index...), i)

			if field.Type == dbTableType {
				if !hasTable {
					table, hasTable = parseTableTag(field)
				}
				continue
			}

			tag, tagged := field.Tag.Lookup("db")
			if field.Anonymous && !tagged {
				ft := field.Type
				if ft.Kind() == reflect.Ptr {
					ft = ft.Elem()
				}
				if ft.Kind() == reflect.Struct {
					queue = append(queue, level{typ: ft, index: index})
				}
				continue
			}

			if !tagged || tag == "-" || !field.IsExported() {
				continue
			}

			col := parseDBTag(field.Name, tag, naming)
			col.index = index
			col.typ = field.Type
			cols = append(cols, col)
		}
	}

	return
}

// parseDBTag reads a `db:"column,opt opt=value"` tag.
func parseDBTag(fieldName, value string, naming NamingStrategy) ColumnDescriptor {
	tagArr := strings.SplitN(value, ",", 2)

	name := strings.TrimSpace(tagArr[0])
	if name == "" {
		name = naming(fieldName)
	}

	var isAuto, isKey, isFK, isView bool
	overrides := map[string]bool{}
	if len(tagArr) > 1 {
		for _, v := range strings.Fields(tagArr[1]) {
			varr := strings.SplitN(v, "=", 2)
			key := strings.ToLower(strings.TrimSpace(varr[0]))
			bval := true
			if len(varr) > 1 {
				bval = !strings.EqualFold(strings.TrimSpace(varr[1]), "false")
			}

			switch key {
			case "auto":
				isAuto = bval
			case "key":
				isKey = bval
			case "fk":
				isFK = bval
			case "view":
				isView = bval
			case "select", "insert", "update", "delete":
				overrides[key] = bval
			}
		}
	}

	kind := Normal
	switch {
	case isAuto:
		kind = AutoGeneratedPrimaryKey
	case isKey:
		kind = NormalPrimaryKey
	case isFK:
		kind = ForeignKey
	case isView:
		kind = ViewColumn
	}

	col := NewColumn(fieldName, name, kind)
	for k, v := range overrides {
		switch k {
		case "select":
			col.InSelect = v
		case "insert":
			col.InInsert = v
		case "update":
			col.InUpdate = v
		case "delete":
			col.InDelete = v
		}
	}

	return col
}
