package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the few places where the Postgres and SQLite stores differ.
// Queries are written with '?' placeholders and rebound per dialect.
type Dialect struct {
	Name string
	// Numbered switches '?' to '$1', '$2', ...
	Numbered bool
	// ReviewLatencySeconds is an aggregate yielding the mean seconds between
	// received_at and reviewed_at.
	ReviewLatencySeconds string
	IsUniqueViolation    func(error) bool
}

var Postgres = Dialect{
	Name:                 "postgres",
	Numbered:             true,
	ReviewLatencySeconds: "AVG(EXTRACT(EPOCH FROM (reviewed_at - received_at)))::float8",
}

var SQLite = Dialect{
	Name:                 "sqlite",
	ReviewLatencySeconds: "AVG((julianday(reviewed_at) - julianday(received_at)) * 86400.0)",
}

func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) uniqueViolation(err error) bool {
	return err != nil && d.IsUniqueViolation != nil && d.IsUniqueViolation(err)
}
