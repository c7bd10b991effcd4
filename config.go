package store

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"
)

// Config describes a database handle. It is usually loaded from YAML:
//
//	driver: sqlserver
//	host: db.local
//	port: "1433"
//	database: sales
//	user: app
//	password: secret
//	slow_threshold: 500ms
//	count_strategy: window
type Config struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// Dialect defaults to the one matching Driver.
	Dialect        string        `yaml:"dialect"`
	SlowThreshold  time.Duration `yaml:"slow_threshold"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	CountStrategy  string        `yaml:"count_strategy"`
	Naming         string        `yaml:"naming"`
	StrictBinding  bool          `yaml:"strict_binding"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return ParseConfig(b)
}

func ParseConfig(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("store: parse config: %w", err)
	}
	return cfg, nil
}

// Options translates the tuning fields into DB options.
func (c Config) Options() ([]Option, error) {
	dialectName := c.Dialect
	if dialectName == "" {
		dialectName = c.Driver
	}
	dialect, err := DialectFor(dialectName)
	if err != nil {
		return nil, err
	}

	count, err := CountStrategyFor(c.CountStrategy)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithDialect(dialect),
		WithCountStrategy(count),
		WithStrictBinding(c.StrictBinding),
		WithDefaultTimeout(c.CommandTimeout),
	}
	if c.SlowThreshold > 0 {
		opts = append(opts, WithSlowThreshold(c.SlowThreshold))
	}
	if c.Naming != "" {
		naming, err := NamingStrategyFor(c.Naming)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithRegistry(NewRegistry(naming)))
	}

	return opts, nil
}

func (c Config) connect() (*sqlx.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	if c.DSN != "" {
		return sqlx.Open(driverName(driver), c.DSN)
	}

	switch driver {
	case "", SQLServer, "mssql":
		return ConnectSQLServer(SQLServerConfig{Host: c.Host, Port: c.Port, Database: c.Database, User: c.User, Password: c.Password})
	case "pgx", Postgres, "postgresql":
		pg := PGConfig{Host: c.Host, Port: c.Port, Database: c.Database, User: c.User, Password: c.Password}
		if driver == "pgx" {
			return ConnectPostgresql(pg)
		}
		return ConnectPostgresqlPQ(pg)
	case MySQL:
		return ConnectMySQL(MySQLConfig{Host: c.Host, Port: c.Port, Database: c.Database, User: c.User, Password: c.Password})
	case SQLite, "sqlite3":
		return ConnectSqlite(c.Database)
	}
	return nil, fmt.Errorf("store: unknown driver %q", c.Driver)
}

func driverName(driver string) string {
	switch driver {
	case "", "mssql":
		return SQLServer
	case "postgresql":
		return Postgres
	case "sqlite3":
		return SQLite
	}
	return driver
}

// Open connects with cfg and wraps the pool. opts are applied after the config.
func Open(cfg Config, opts ...Option) (*DB, error) {
	cfgOpts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	db, err := cfg.connect()
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return NewDB(db, append(cfgOpts, opts...)...), nil
}
