package bench

import "context"

// Backend opens connections to the database under test.
type Backend interface {
	Name() string
	Connect(ctx context.Context) (Conn, error)
}

// Conn is a single database connection. It is owned by one worker.
type Conn interface {
	// Query runs text and returns a handle positioned before the first row.
	Query(ctx context.Context, text string) (Handle, error)
	// Prepare prepares text; the returned handle has no rows until Execute.
	Prepare(ctx context.Context, text string) (Handle, error)
	ServerVersion(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// Handle is the result cursor of the last query executed through it.
type Handle interface {
	// Execute re-runs the prepared statement.
	Execute(ctx context.Context) error
	// Requery runs text again on the same handle.
	Requery(ctx context.Context, text string) error

	ColumnCount() int
	ColumnType(i int) string

	Next() bool
	// Field returns the textual value of column i in the current row.
	// present is false for NULL.
	Field(i int) (value []byte, present bool)
	Err() error
	Close() error
}
