package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"clientbench/bench"
)

// Backend opens one pgx connection per worker. Results are always requested
// in text format so the column checks see the same representation in both
// query modes.
type Backend struct {
	config *pgx.ConnConfig
}

func New(c bench.ConnConfig) (*Backend, error) {
	dsn := c.DSN
	if dsn == "" {
		sslmode := c.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			c.User, c.Password, c.Host, c.Port, c.Database, sslmode)
	}

	config, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres config")
	}
	if c.ConnectTimeout > 0 {
		config.ConnectTimeout = c.ConnectTimeout
	}
	return &Backend{config: config}, nil
}

func (b *Backend) Name() string {
	return "postgres"
}

func (b *Backend) Connect(ctx context.Context) (bench.Conn, error) {
	conn, err := pgx.ConnectConfig(ctx, b.config.Copy())
	if err != nil {
		return nil, err
	}
	return &Conn{conn: conn}, nil
}

type Conn struct {
	conn  *pgx.Conn
	stmts int
}

func (c *Conn) Query(ctx context.Context, text string) (bench.Handle, error) {
	h := &Handle{conn: c.conn}
	if err := h.Requery(ctx, text); err != nil {
		return nil, err
	}
	return h, nil
}

func (c *Conn) Prepare(ctx context.Context, text string) (bench.Handle, error) {
	c.stmts++
	name := fmt.Sprintf("clientbench_%d", c.stmts)
	if _, err := c.conn.Prepare(ctx, name, text); err != nil {
		return nil, err
	}
	return &Handle{conn: c.conn, stmt: name}, nil
}

func (c *Conn) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := c.conn.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

func (c *Conn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

type Handle struct {
	conn *pgx.Conn
	stmt string // prepared statement name, empty for plain queries
	rows pgx.Rows
}

func (h *Handle) Execute(ctx context.Context) error {
	if h.stmt == "" {
		return errors.New("handle was not prepared")
	}
	h.closeRows()
	rows, err := h.conn.Query(ctx, h.stmt, pgx.QueryResultFormats{pgx.TextFormatCode})
	if err != nil {
		return err
	}
	h.rows = rows
	return nil
}

func (h *Handle) Requery(ctx context.Context, text string) error {
	h.closeRows()
	rows, err := h.conn.Query(ctx, text, pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		return err
	}
	h.rows = rows
	return nil
}

func (h *Handle) ColumnCount() int {
	if h.rows == nil {
		return 0
	}
	return len(h.rows.FieldDescriptions())
}

func (h *Handle) ColumnType(i int) string {
	fields := h.rows.FieldDescriptions()
	if i < 0 || i >= len(fields) {
		return ""
	}
	oid := fields[i].DataTypeOID
	t, ok := h.conn.TypeMap().TypeForOID(oid)
	if !ok {
		return fmt.Sprintf("oid %d", oid)
	}
	return TypeName(t.Name)
}

func (h *Handle) Next() bool {
	return h.rows != nil && h.rows.Next()
}

func (h *Handle) Field(i int) ([]byte, bool) {
	values := h.rows.RawValues()
	if i < 0 || i >= len(values) || values[i] == nil {
		return nil, false
	}
	return values[i], true
}

func (h *Handle) Err() error {
	if h.rows == nil {
		return nil
	}
	return h.rows.Err()
}

func (h *Handle) Close() error {
	h.closeRows()
	return nil
}

func (h *Handle) closeRows() {
	if h.rows != nil {
		h.rows.Close()
		h.rows = nil
	}
}

var typeNames = map[string]string{
	"int2":    "smallint",
	"int4":    "int",
	"int8":    "bigint",
	"char":    "char",
	"bpchar":  "char",
	"varchar": "varchar",
	"text":    "clob",
}

// TypeName maps a PostgreSQL type name onto the names used by the column
// checks. Unknown names are returned unchanged.
func TypeName(pgName string) string {
	if name, ok := typeNames[pgName]; ok {
		return name
	}
	return pgName
}
