package bench

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DirectiveError reports a malformed @KEYWORD[=VALUE]@ directive.
type DirectiveError struct {
	Keyword string
	Reason  string
}

func (e *DirectiveError) Error() string {
	if e.Keyword == "" {
		return e.Reason
	}
	return e.Reason + " " + e.Keyword
}

type directive struct {
	keyword  string
	hasValue bool
	value    int64
}

// ReadBenchmark reads a query file and parses the directives embedded in it.
func ReadBenchmark(path string) (*Benchmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read query file %s", path)
	}
	return ParseBenchmark(string(data))
}

// ParseBenchmark scans text left to right for @KEYWORD@ and @KEYWORD=N@
// directives. The text itself is kept verbatim, directives included, and is
// what gets sent to the database.
func ParseBenchmark(text string) (*Benchmark, error) {
	b := &Benchmark{
		Text:     text,
		Parallel: 1,
		Expected: -1,
	}

	rest := text
	for {
		d, next, found, err := nextDirective(rest)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		if err := b.apply(d); err != nil {
			return nil, err
		}
		rest = next
	}
	return b, nil
}

func (b *Benchmark) apply(d directive) error {
	switch {
	case d.keyword == "PREPARE":
		b.Prepare = true
	case d.keyword == "RECONNECT":
		b.Reconnect = true
	case d.keyword == "PARALLEL" && d.hasValue:
		if d.value < 1 {
			return &DirectiveError{Keyword: d.keyword, Reason: "parallelism must be positive for keyword"}
		}
		b.Parallel = int(d.value)
	case d.keyword == "ALL_TEXT":
		b.AllText = true
	case d.keyword == "EXPECTED" && d.hasValue:
		b.Expected = d.value
	default:
		return &DirectiveError{Keyword: d.keyword, Reason: "invalid keyword"}
	}
	return nil
}

// nextDirective returns the first directive in s and the text following its
// closing @.
func nextDirective(s string) (d directive, rest string, found bool, err error) {
	open := strings.IndexByte(s, '@')
	if open < 0 {
		return directive{}, "", false, nil
	}
	body := s[open+1:]
	end := strings.IndexByte(body, '@')
	if end < 0 {
		return directive{}, "", false, &DirectiveError{Reason: "unterminated @KEYWORD@"}
	}
	rest = body[end+1:]
	body = body[:end]

	keyword, value, hasValue := strings.Cut(body, "=")
	d = directive{keyword: keyword, hasValue: hasValue}
	if hasValue {
		d.value, err = strconv.ParseInt(value, 10, 64)
		if err != nil {
			return directive{}, "", false, &DirectiveError{Keyword: keyword, Reason: "invalid value for keyword"}
		}
	}
	return d, rest, true, nil
}
