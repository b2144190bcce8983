package my

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientbench/bench"
)

func TestTypeName(t *testing.T) {
	tests := map[string]string{
		"TINYINT":         "tinyint",
		"SMALLINT":        "smallint",
		"MEDIUMINT":       "int",
		"INT":             "int",
		"UNSIGNED INT":    "int",
		"BIGINT":          "bigint",
		"UNSIGNED BIGINT": "bigint",
		"CHAR":            "char",
		"VARCHAR":         "varchar",
		"TEXT":            "clob",
		"DECIMAL":         "decimal",
	}
	for in, want := range tests {
		assert.Equal(t, want, TypeName(in), in)
	}
}

func TestNew(t *testing.T) {
	b, err := New(bench.ConnConfig{Host: "db.example", Port: 3307, User: "bench", Database: "tpch"})
	require.NoError(t, err)
	assert.Equal(t, "mysql", b.Name())

	_, err = New(bench.ConnConfig{DSN: "not a dsn"})
	assert.Error(t, err)
}
