package my

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"clientbench/bench"
)

// Backend gives every worker a dedicated *sql.Conn backed by its own
// single-connection *sql.DB, so closing it really drops the server session.
type Backend struct {
	connector driver.Connector
}

func New(c bench.ConnConfig) (*Backend, error) {
	var cfg *mysql.Config
	if c.DSN != "" {
		parsed, err := mysql.ParseDSN(c.DSN)
		if err != nil {
			return nil, errors.Wrap(err, "parse mysql dsn")
		}
		cfg = parsed
	} else {
		cfg = mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		cfg.DBName = c.Database
		cfg.AllowCleartextPasswords = true
	}
	if c.ConnectTimeout > 0 {
		cfg.Timeout = c.ConnectTimeout
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "mysql connector")
	}
	return &Backend{connector: connector}, nil
}

func (b *Backend) Name() string {
	return "mysql"
}

func (b *Backend) Connect(ctx context.Context) (bench.Conn, error) {
	db := sql.OpenDB(b.connector)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Conn{db: db, conn: conn}, nil
}

type Conn struct {
	db   *sql.DB
	conn *sql.Conn
}

func (c *Conn) Query(ctx context.Context, text string) (bench.Handle, error) {
	h := &Handle{conn: c.conn}
	if err := h.Requery(ctx, text); err != nil {
		return nil, err
	}
	return h, nil
}

func (c *Conn) Prepare(ctx context.Context, text string) (bench.Handle, error) {
	stmt, err := c.conn.PrepareContext(ctx, text)
	if err != nil {
		return nil, err
	}
	return &Handle{conn: c.conn, stmt: stmt}, nil
}

func (c *Conn) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := c.conn.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

func (c *Conn) Close(ctx context.Context) error {
	err := c.conn.Close()
	if dbErr := c.db.Close(); err == nil {
		err = dbErr
	}
	return err
}

type Handle struct {
	conn *sql.Conn
	stmt *sql.Stmt
	rows *sql.Rows

	columns []*sql.ColumnType
	raw     []sql.RawBytes
	dest    []any
	err     error
}

func (h *Handle) Execute(ctx context.Context) error {
	if h.stmt == nil {
		return errors.New("handle was not prepared")
	}
	h.closeRows()
	rows, err := h.stmt.QueryContext(ctx)
	if err != nil {
		return err
	}
	return h.attach(rows)
}

func (h *Handle) Requery(ctx context.Context, text string) error {
	h.closeRows()
	rows, err := h.conn.QueryContext(ctx, text)
	if err != nil {
		return err
	}
	return h.attach(rows)
}

func (h *Handle) attach(rows *sql.Rows) error {
	columns, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return err
	}
	h.rows = rows
	h.columns = columns
	h.err = nil
	if len(h.raw) != len(columns) {
		h.raw = make([]sql.RawBytes, len(columns))
		h.dest = make([]any, len(columns))
		for i := range h.raw {
			h.dest[i] = &h.raw[i]
		}
	}
	return nil
}

func (h *Handle) ColumnCount() int {
	return len(h.columns)
}

func (h *Handle) ColumnType(i int) string {
	if i < 0 || i >= len(h.columns) {
		return ""
	}
	return TypeName(h.columns[i].DatabaseTypeName())
}

func (h *Handle) Next() bool {
	if h.rows == nil || h.err != nil {
		return false
	}
	if !h.rows.Next() {
		return false
	}
	if err := h.rows.Scan(h.dest...); err != nil {
		h.err = err
		return false
	}
	return true
}

func (h *Handle) Field(i int) ([]byte, bool) {
	if i < 0 || i >= len(h.raw) || h.raw[i] == nil {
		return nil, false
	}
	return h.raw[i], true
}

func (h *Handle) Err() error {
	if h.err != nil {
		return h.err
	}
	if h.rows == nil {
		return nil
	}
	return h.rows.Err()
}

func (h *Handle) Close() error {
	h.closeRows()
	if h.stmt != nil {
		err := h.stmt.Close()
		h.stmt = nil
		return err
	}
	return nil
}

func (h *Handle) closeRows() {
	if h.rows != nil {
		h.rows.Close()
		h.rows = nil
	}
}

var typeNames = map[string]string{
	"tinyint":    "tinyint",
	"smallint":   "smallint",
	"mediumint":  "int",
	"int":        "int",
	"bigint":     "bigint",
	"char":       "char",
	"varchar":    "varchar",
	"tinytext":   "clob",
	"text":       "clob",
	"mediumtext": "clob",
	"longtext":   "clob",
}

// TypeName maps a MySQL column type name, as reported by the driver, onto
// the names used by the column checks. Unknown names are returned lowercased.
func TypeName(mysqlName string) string {
	name := strings.ToLower(mysqlName)
	name = strings.TrimPrefix(name, "unsigned ")
	if mapped, ok := typeNames[name]; ok {
		return mapped
	}
	return name
}
