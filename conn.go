package store

import (
	"fmt"
	"net/url"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

type PGConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

func (c PGConfig) url() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", url.PathEscape(c.User), url.PathEscape(c.Password), c.Host, c.Port, c.Database)
}

// ConnectPostgresql opens a pool on the pgx driver.
func ConnectPostgresql(config PGConfig) (*sqlx.DB, error) {
	return sqlx.Open("pgx", config.url())
}

// ConnectPostgresqlPQ opens a pool on the lib/pq driver.
func ConnectPostgresqlPQ(config PGConfig) (*sqlx.DB, error) {
	return sqlx.Open("postgres", config.url())
}

type SQLServerConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

func (c SQLServerConfig) url() string {
	u := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host,
	}
	if c.Port != "" {
		u.Host = c.Host + ":" + c.Port
	}
	q := url.Values{}
	q.Set("database", c.Database)
	u.RawQuery = q.Encode()
	return u.String()
}

func ConnectSQLServer(config SQLServerConfig) (*sqlx.DB, error) {
	return sqlx.Open("sqlserver", config.url())
}

type MySQLConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

func ConnectMySQL(config MySQLConfig) (*sqlx.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = config.User
	cfg.Passwd = config.Password
	cfg.Net = "tcp"
	cfg.Addr = config.Host
	if config.Port != "" {
		cfg.Addr = config.Host + ":" + config.Port
	}
	cfg.DBName = config.Database
	cfg.ParseTime = true
	return sqlx.Open("mysql", cfg.FormatDSN())
}

// ConnectSqlite opens a database file, or a private in-memory database for ":memory:".
func ConnectSqlite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	return db, nil
}
