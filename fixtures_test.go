package store

import (
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/guregu/null.v4"
)

type Status int

const (
	StatusNew Status = iota
	StatusActive
	StatusClosed
)

type Customer struct {
	DBTable   `schema:"dbo" name:"Customers" orderby:"Name asc" exclude:"Secret, "`
	ID        int64       `db:"Id,key auto"`
	Name      string      `db:"Name"`
	CountryID int         `db:"CountryId,fk"`
	Status    Status      `db:"Status"`
	Born      time.Time   `db:"BirthDate"`
	Total     int         `db:",view"`
	Secret    string      `db:"Secret"`
	Email     null.String `db:"Email"`
	Ignored   string
}

type CustomerName struct {
	ID   int64  `db:"Id"`
	Name string `db:"Name"`
}

type Audit struct {
	CreatedBy string    `db:"CreatedBy,update=false"`
	CreatedAt time.Time `db:"CreatedAt,update=false"`
}

type Invoice struct {
	DBTable `name:"Invoices"`
	Audit
	Number   string          `db:"Number,key"`
	Amount   decimal.Decimal `db:"Amount"`
	Discount *float64        `db:"Discount"`
	Lines    []string        `db:"Lines"`
	Paid     bool            `db:"Paid,select=false"`
}

type Product struct {
	DBTable    `name:"products" orderby:"name"`
	ID         int64       `db:"id,key auto"`
	Name       string      `db:"name"`
	Price      float64     `db:"price"`
	CategoryID null.Int    `db:"category_id,fk"`
	Note       null.String `db:"note"`
}

const productDDL = `create table products (
	id integer primary key autoincrement,
	name text not null unique,
	price real not null,
	category_id integer null,
	note text null
)`

type describedOrder struct {
	Ref   string
	Total float64
}

func (describedOrder) TableDescriptor() TableDescriptor {
	return NewTableDescriptor("Orders", "Ref", " ", "Hidden ")
}

func (describedOrder) ColumnDescriptors() []ColumnDescriptor {
	return []ColumnDescriptor{
		NewColumn("Ref", "OrderRef", NormalPrimaryKey),
		NewColumn("Total", "", Normal),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
