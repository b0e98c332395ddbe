// Package snowflake loads published warehouse tables into a SQL warehouse,
// Snowflake by default or PostgreSQL through pgx.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/snowflakedb/gosnowflake"
	"github.com/zalando/go-keyring"

	"dwbuild/internal/config"
	"dwbuild/internal/observability"
	"dwbuild/internal/table"
	"dwbuild/pkg/errors"
)

// Supported drivers
const (
	DriverSnowflake = "snowflake"
	DriverPgx       = "pgx"
)

// KeyringService is the keyring entry holding warehouse passwords, keyed by user name
const KeyringService = "dwbuild"

// Config holds warehouse connection configuration
type Config struct {
	Driver    string
	DSN       string
	Account   string
	Username  string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
	Timeout   time.Duration
	BatchSize int
}

// ConfigFrom converts the warehouse section of the build configuration
func ConfigFrom(wc config.WarehouseConfig) Config {
	return Config{
		Driver:    wc.Driver,
		DSN:       wc.DSN,
		Account:   wc.Account,
		Username:  wc.Username,
		Password:  wc.Password,
		Database:  wc.Database,
		Schema:    wc.Schema,
		Warehouse: wc.Warehouse,
		Role:      wc.Role,
		Timeout:   time.Duration(wc.TimeoutSec) * time.Second,
		BatchSize: wc.BatchSize,
	}
}

// Service replaces warehouse tables over database/sql
type Service struct {
	db        *sql.DB
	config    Config
	connected bool
	builder   sq.StatementBuilderType
	logger    *observability.Logger
}

// NewService creates a new warehouse service
func NewService(config Config, logger *observability.Logger) *Service {
	if config.Driver == "" {
		config.Driver = DriverSnowflake
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	var placeholders sq.PlaceholderFormat = sq.Question
	if config.Driver == DriverPgx {
		placeholders = sq.Dollar
	}

	return &Service{
		config:  config,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholders),
		logger:  logger.WithField("driver", config.Driver),
	}
}

// Driver returns the database/sql driver name in use
func (s *Service) Driver() string {
	return s.config.Driver
}

// ValidateConfig validates the warehouse configuration
func ValidateConfig(config Config) error {
	switch config.Driver {
	case DriverSnowflake, "":
		if config.DSN != "" {
			return nil
		}
		if config.Account == "" {
			return fmt.Errorf("account is required")
		}
		if config.Username == "" {
			return fmt.Errorf("username is required")
		}
		if config.Database == "" {
			return fmt.Errorf("database is required")
		}
	case DriverPgx:
		if config.DSN == "" {
			return fmt.Errorf("dsn is required for the pgx driver")
		}
	default:
		return fmt.Errorf("unsupported driver %q", config.Driver)
	}
	return nil
}

// password returns the configured password, falling back to the OS keyring.
func (s *Service) password() (string, error) {
	if s.config.Password != "" {
		return s.config.Password, nil
	}
	pw, err := keyring.Get(KeyringService, s.config.Username)
	if err == keyring.ErrNotFound {
		return "", errors.New(errors.ErrCodeCredentials, "No warehouse password configured").
			WithContext("user", s.config.Username).
			WithSuggestions(
				"Set DWBUILD_WAREHOUSE_PASSWORD",
				fmt.Sprintf("Store it in the system keyring under service %q", KeyringService),
			)
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeCredentials, "Failed to read password from keyring")
	}
	return pw, nil
}

// DSN builds the driver connection string
func (s *Service) DSN() (string, error) {
	if s.config.DSN != "" {
		return s.config.DSN, nil
	}
	if s.config.Driver == DriverPgx {
		return "", errors.ConfigError("dsn is required for the pgx driver", "warehouse.dsn")
	}

	pw, err := s.password()
	if err != nil {
		return "", err
	}

	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:      s.config.Account,
		User:         s.config.Username,
		Password:     pw,
		Database:     s.config.Database,
		Schema:       s.config.Schema,
		Warehouse:    s.config.Warehouse,
		Role:         s.config.Role,
		LoginTimeout: s.config.Timeout,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid Snowflake connection settings").
			WithContext("account", s.config.Account)
	}
	return dsn, nil
}

// Connect opens and pings the warehouse, retrying transient failures
func (s *Service) Connect(ctx context.Context) error {
	if s.connected {
		return nil
	}

	if err := ValidateConfig(s.config); err != nil {
		return errors.ConfigError(err.Error(), "warehouse")
	}
	dsn, err := s.DSN()
	if err != nil {
		return err
	}

	return errors.RetryWithBackoff(ctx, func(ctx context.Context) error {
		db, err := sql.Open(s.config.Driver, dsn)
		if err != nil {
			return errors.ConnectionError("Failed to open warehouse connection", err).
				WithContext("driver", s.config.Driver)
		}

		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(10 * time.Minute)

		pingCtx, cancel := s.withTimeout(ctx)
		defer cancel()

		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			if strings.Contains(strings.ToLower(err.Error()), "authentication") {
				return errors.New(errors.ErrCodeCredentials, "Authentication failed").
					WithContext("user", s.config.Username).
					WithSuggestions("Verify your username and password")
			}
			return errors.ConnectionError("Failed to connect to warehouse", err).
				WithContext("account", s.config.Account).
				AsRecoverable()
		}

		s.db = db
		s.connected = true
		s.logger.Info("Connected to warehouse")
		return nil
	})
}

// Close closes the database connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	s.connected = false
	return nil
}

// LoadTables connects if needed and replaces every table in order.
func (s *Service) LoadTables(ctx context.Context, tables []*table.Table) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}
	for _, t := range tables {
		if err := s.ReplaceTable(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// stagingSuffix names the table rows are loaded into before a swap.
const stagingSuffix = "_staging"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ReplaceTable replaces t in the warehouse. Readers see either the previous
// rows or all of the new ones, never a partial load.
func (s *Service) ReplaceTable(ctx context.Context, t *table.Table) error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to warehouse").
			WithSuggestions("Call Connect() before loading tables")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var err error
	if s.config.Driver == DriverSnowflake {
		err = s.swapTable(ctx, t)
	} else {
		err = s.replaceInTx(ctx, t)
	}
	if err != nil {
		return err
	}

	s.logger.InfoWithFields("Table loaded", map[string]interface{}{"table": t.Name, "rows": t.Len()})
	return nil
}

// replaceInTx drops, recreates and fills t in one transaction. Postgres DDL
// is transactional, so a rollback restores the previous table.
func (s *Service) replaceInTx(ctx context.Context, t *table.Table) error {
	return s.inTx(ctx, t.Name, func(tx *sql.Tx) error {
		if err := s.recreate(ctx, tx, t.Name, t); err != nil {
			return err
		}
		return s.insertRows(ctx, tx, t.Name, t)
	})
}

// swapTable loads t into a staging table and swaps it with the target once
// every row is in. Snowflake commits each DDL statement on its own.
func (s *Service) swapTable(ctx context.Context, t *table.Table) error {
	staging := t.Name + stagingSuffix

	if err := s.recreate(ctx, s.db, staging, t); err != nil {
		s.dropStaging(ctx, staging)
		return err
	}

	err := s.inTx(ctx, t.Name, func(tx *sql.Tx) error {
		return s.insertRows(ctx, tx, staging, t)
	})
	if err != nil {
		s.dropStaging(ctx, staging)
		return err
	}

	for _, stmt := range []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s LIKE %s", t.Name, staging),
		fmt.Sprintf("ALTER TABLE %s SWAP WITH %s", staging, t.Name),
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.dropStaging(ctx, staging)
			return errors.Wrap(err, errors.ErrCodeWarehouseLoad, "Failed to publish table").
				WithContext("table", t.Name).
				WithContext("statement", stmt)
		}
	}

	// After the swap the staging table holds the previous rows.
	s.dropStaging(ctx, staging)
	return nil
}

// dropStaging removes a staging table, also after ctx was cancelled.
func (s *Service) dropStaging(ctx context.Context, staging string) {
	ctx, cancel := s.withTimeout(context.WithoutCancel(ctx))
	defer cancel()

	if _, err := s.db.ExecContext(ctx, dropStatement(staging)); err != nil {
		s.logger.WarnWithFields("Failed to drop staging table", map[string]interface{}{
			"table": staging,
			"error": err.Error(),
		})
	}
}

func (s *Service) inTx(ctx context.Context, name string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin transaction").
			WithContext("table", name)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WarnWithFields("Rollback failed", map[string]interface{}{"table": name, "error": rbErr.Error()})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to commit transaction").
			WithContext("table", name)
	}
	return nil
}

func (s *Service) recreate(ctx context.Context, db execer, name string, t *table.Table) error {
	for _, stmt := range []string{dropStatement(name), s.createStatement(name, t)} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, errors.ErrCodeWarehouseLoad, "Failed to prepare table").
				WithContext("table", t.Name).
				WithContext("statement", stmt)
		}
	}
	return nil
}

// insertRows inserts t's rows into the table called name in batches.
func (s *Service) insertRows(ctx context.Context, db execer, name string, t *table.Table) error {
	columns := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = table.CanonicalName(c.Name)
	}

	for start := 0; start < len(t.Rows); start += s.config.BatchSize {
		end := min(start+s.config.BatchSize, len(t.Rows))

		insert := s.builder.Insert(name).Columns(columns...)
		for i, row := range t.Rows[start:end] {
			values, err := bindRow(t.Columns, row)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeWarehouseLoad, "Row does not match column types").
					WithContext("table", t.Name).
					WithContext("row", start+i+1)
			}
			insert = insert.Values(values...)
		}

		query, args, err := insert.ToSql()
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "Failed to build insert").WithContext("table", t.Name)
		}
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrap(err, errors.ErrCodeWarehouseLoad, "Failed to insert rows").
				WithContext("table", t.Name).
				WithContext("first_row", start+1)
		}
	}
	return nil
}

func dropStatement(name string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", name)
}

func (s *Service) createStatement(name string, t *table.Table) string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		def := table.CanonicalName(c.Name) + " " + s.sqlType(c.Kind)
		if !c.Nullable && c.Kind != table.KindString {
			def += " NOT NULL"
		}
		defs[i] = def
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", "))
}

func (s *Service) sqlType(k table.Kind) string {
	pg := s.config.Driver == DriverPgx
	switch k {
	case table.KindInt:
		if pg {
			return "BIGINT"
		}
		return "NUMBER(38,0)"
	case table.KindFloat:
		if pg {
			return "DOUBLE PRECISION"
		}
		return "FLOAT"
	case table.KindDate:
		return "DATE"
	default:
		if pg {
			return "TEXT"
		}
		return "VARCHAR"
	}
}

// bindRow converts text cells to driver values. Empty cells of typed
// columns become NULL.
func bindRow(columns []table.Column, row []string) ([]interface{}, error) {
	values := make([]interface{}, len(columns))
	for i, c := range columns {
		cell := row[i]
		if cell == "" && c.Kind != table.KindString {
			values[i] = nil
			continue
		}
		switch c.Kind {
		case table.KindInt:
			v, err := strconv.ParseInt(cell, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			values[i] = v
		case table.KindFloat:
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			values[i] = v
		default:
			values[i] = cell
		}
	}
	return values, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
