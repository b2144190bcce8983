package pg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientbench/bench"
)

func TestTypeName(t *testing.T) {
	tests := map[string]string{
		"int2":    "smallint",
		"int4":    "int",
		"int8":    "bigint",
		"bpchar":  "char",
		"varchar": "varchar",
		"text":    "clob",
		"float8":  "float8",
	}
	for in, want := range tests {
		assert.Equal(t, want, TypeName(in), in)
	}
}

func TestNew(t *testing.T) {
	b, err := New(bench.ConnConfig{
		Host:           "db.example",
		Port:           6543,
		User:           "bench",
		Password:       "secret",
		Database:       "tpch",
		ConnectTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres", b.Name())
	assert.Equal(t, "db.example", b.config.Host)
	assert.Equal(t, uint16(6543), b.config.Port)
	assert.Equal(t, "bench", b.config.User)
	assert.Equal(t, "tpch", b.config.Database)
	assert.Equal(t, 3*time.Second, b.config.ConnectTimeout)
}

func TestNew_DSN(t *testing.T) {
	b, err := New(bench.ConnConfig{
		Host: "ignored",
		DSN:  "postgres://u:p@other:5433/db?sslmode=disable",
	})
	require.NoError(t, err)
	assert.Equal(t, "other", b.config.Host)
	assert.Equal(t, uint16(5433), b.config.Port)

	_, err = New(bench.ConnConfig{DSN: "postgres://u:p@host:notaport/db"})
	assert.Error(t, err)
}
