package persistence

import (
	"github.com/lib/pq"
)

// pqStringArray adapts a []string for storage in a Postgres text[] column.
func pqStringArray(ss []string) pq.StringArray {
	if ss == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(ss)
}
