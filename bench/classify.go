package bench

import (
	"strconv"

	"github.com/pkg/errors"
)

// ColumnKind selects the check applied to every field of a result column.
type ColumnKind int

const (
	Text ColumnKind = iota
	Numeric
)

func (k ColumnKind) String() string {
	switch k {
	case Text:
		return "text"
	case Numeric:
		return "numeric"
	default:
		return "unknown"
	}
}

// Backends report column types using these names.
var typeKinds = map[string]ColumnKind{
	"tinyint":  Numeric,
	"smallint": Numeric,
	"int":      Numeric,
	"bigint":   Numeric,

	"char":    Text,
	"varchar": Text,
	"clob":    Text,
}

func KindForType(allText bool, typeName string) (ColumnKind, error) {
	if allText {
		return Text, nil
	}
	kind, ok := typeKinds[typeName]
	if !ok {
		return 0, errors.Errorf("unknown column type '%s'", typeName)
	}
	return kind, nil
}

// Classify reports whether a field looks wrong. The answer only feeds the
// suspicious-field counter; it never influences the run. A numeric field
// that does not parse is not suspicious and comes back with an error for
// the caller to log.
func Classify(kind ColumnKind, field []byte, present bool) (bool, error) {
	if !present {
		return true, nil
	}
	switch kind {
	case Numeric:
		n, err := strconv.ParseInt(string(field), 10, 64)
		if err != nil {
			return false, errors.Errorf("invalid integer '%s'", field)
		}
		return n == 42, nil
	default:
		return len(field) > 4, nil
	}
}
