package store

import (
	"bytes"
	"log/slog"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"
)

func bindCustomer(t *testing.T, b *Binder, c Customer, kind StatementKind) *Params {
	t.Helper()
	meta := customerMeta(t)
	p, err := b.Bind(&c, meta, ResolveColumns(meta, kind, nil, nil))
	require.NoError(t, err)
	return p
}

func TestBindForeignKeyZeroIsNull(t *testing.T) {
	b := NewBinder(SQLServerDialect{}, discardLogger(), false)

	p := bindCustomer(t, b, Customer{Name: "a", CountryID: 0}, InsertStatement)
	v, ok := p.Get("CountryId")
	require.True(t, ok)
	assert.True(t, v.IsNull())

	p = bindCustomer(t, b, Customer{Name: "a", CountryID: 5}, InsertStatement)
	v, _ = p.Get("CountryId")
	assert.Equal(t, Int(5), v)
}

type regionRef int64

type shipment struct {
	DBTable  `name:"Shipments"`
	Ref      string    `db:"Ref,key"`
	RegionID regionRef `db:"RegionId,fk"`
	Weight   uint64    `db:"Weight"`
}

func TestBindNamedForeignKey(t *testing.T) {
	b := NewBinder(SQLServerDialect{}, discardLogger(), false)
	meta, err := NewRegistry(nil).Resolve(reflect.TypeOf(shipment{}))
	require.NoError(t, err)

	p, err := b.Bind(shipment{Ref: "s1"}, meta, ResolveColumns(meta, InsertStatement, nil, nil))
	require.NoError(t, err)
	region, ok := p.Get("RegionId")
	require.True(t, ok)
	assert.True(t, region.IsNull())

	p, err = b.Bind(shipment{Ref: "s1", RegionID: 4}, meta, ResolveColumns(meta, InsertStatement, nil, nil))
	require.NoError(t, err)
	region, _ = p.Get("RegionId")
	assert.Equal(t, Int(4), region)
}

func TestBindUnsignedOverflow(t *testing.T) {
	meta, err := NewRegistry(nil).Resolve(reflect.TypeOf(shipment{}))
	require.NoError(t, err)
	set := ResolveColumns(meta, InsertStatement, nil, nil)

	p, err := NewBinder(SQLServerDialect{}, discardLogger(), false).Bind(shipment{Ref: "s1", Weight: math.MaxInt64}, meta, set)
	require.NoError(t, err)
	w, _ := p.Get("Weight")
	assert.Equal(t, Int(math.MaxInt64), w)

	p, err = NewBinder(SQLServerDialect{}, discardLogger(), false).Bind(shipment{Ref: "s1", Weight: math.MaxUint64}, meta, set)
	require.NoError(t, err)
	assert.False(t, p.Has("Weight"))

	_, err = NewBinder(SQLServerDialect{}, discardLogger(), true).Bind(shipment{Ref: "s1", Weight: math.MaxUint64}, meta, set)
	var bindErr *FieldBindingError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "Weight", bindErr.Field)
}

func TestBindDateRange(t *testing.T) {
	b := NewBinder(SQLServerDialect{}, discardLogger(), false)

	p := bindCustomer(t, b, Customer{}, InsertStatement)
	v, _ := p.Get("BirthDate")
	assert.True(t, v.IsNull(), "zero time is out of range")

	born := time.Date(1980, 2, 3, 0, 0, 0, 0, time.UTC)
	p = bindCustomer(t, b, Customer{Born: born}, InsertStatement)
	v, _ = p.Get("BirthDate")
	assert.Equal(t, Time(born), v)

	p = bindCustomer(t, b, Customer{Born: time.Date(1700, 1, 1, 0, 0, 0, 0, time.UTC)}, InsertStatement)
	v, _ = p.Get("BirthDate")
	assert.True(t, v.IsNull())

	sqlite := NewBinder(SQLiteDialect{}, discardLogger(), false)
	p = bindCustomer(t, sqlite, Customer{Born: time.Date(1700, 1, 1, 0, 0, 0, 0, time.UTC)}, InsertStatement)
	v, _ = p.Get("BirthDate")
	assert.False(t, v.IsNull())
}

func TestBindEnumAndNullable(t *testing.T) {
	b := NewBinder(SQLServerDialect{}, discardLogger(), false)

	p := bindCustomer(t, b, Customer{Status: StatusClosed, Email: null.StringFrom("a@b.c")}, UpdateStatement)
	assert.Equal(t, []string{"Name", "CountryId", "Status", "BirthDate", "Email"}, p.Names())

	status, _ := p.Get("Status")
	assert.Equal(t, Int(2), status)

	email, _ := p.Get("Email")
	assert.Equal(t, Text("a@b.c"), email)

	p = bindCustomer(t, b, Customer{}, UpdateStatement)
	email, _ = p.Get("Email")
	assert.True(t, email.IsNull())
}

func TestBindSkipsUnsupportedField(t *testing.T) {
	var logs bytes.Buffer
	b := NewBinder(SQLServerDialect{}, slog.New(slog.NewTextHandler(&logs, nil)), false)

	meta, err := NewRegistry(nil).Resolve(reflect.TypeOf(Invoice{}))
	require.NoError(t, err)

	discount := 0.25
	inv := Invoice{
		Audit:    Audit{CreatedBy: "me"},
		Number:   "INV-1",
		Amount:   decimal.RequireFromString("99.90"),
		Discount: &discount,
		Lines:    []string{"a"},
		Paid:     true,
	}

	p, err := b.Bind(inv, meta, ResolveColumns(meta, InsertStatement, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Number", "Amount", "Discount", "Paid", "CreatedBy", "CreatedAt"}, p.Names())
	assert.Contains(t, logs.String(), "skipping parameter")
	assert.Contains(t, logs.String(), "Lines")

	amount, _ := p.Get("Amount")
	assert.Equal(t, Text("99.9"), amount)
	d, _ := p.Get("Discount")
	assert.Equal(t, Float(0.25), d)
	createdBy, _ := p.Get("CreatedBy")
	assert.Equal(t, Text("me"), createdBy)

	inv.Discount = nil
	p, err = b.Bind(&inv, meta, ResolveColumns(meta, InsertStatement, nil, nil))
	require.NoError(t, err)
	d, _ = p.Get("Discount")
	assert.True(t, d.IsNull())
}

func TestBindStrict(t *testing.T) {
	b := NewBinder(SQLServerDialect{}, discardLogger(), true)
	meta, err := NewRegistry(nil).Resolve(reflect.TypeOf(Invoice{}))
	require.NoError(t, err)

	_, err = b.Bind(Invoice{Lines: []string{"a"}}, meta, ResolveColumns(meta, InsertStatement, nil, nil))
	var bindErr *FieldBindingError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "Lines", bindErr.Field)
	assert.Equal(t, "Lines", bindErr.Column)
}

func TestBindIgnoresAdHocAndChecksType(t *testing.T) {
	b := NewBinder(nil, nil, false)
	meta := customerMeta(t)

	p, err := b.Bind(Customer{Name: "x"}, meta, ResolveColumns(meta, SelectStatement, []string{"Name", "getdate()"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Name"}, p.Names())

	_, err = b.Bind(Product{}, meta, nil)
	assert.Error(t, err)

	var nilCustomer *Customer
	_, err = b.Bind(nilCustomer, meta, nil)
	assert.Error(t, err)
}
