package gtfsdb

// Hand-written search queries. Full-text indexes differ between SQLite and
// Postgres, so stop search uses a case-insensitive LIKE that both accept.

import (
	"context"
	"strings"
)

const searchStopsByName = `
SELECT id, code, name, lat, lon
FROM stops
WHERE LOWER(name) LIKE ? ESCAPE '\'
ORDER BY name, id
LIMIT ?
`

type SearchStopsByNameParams struct {
	SearchQuery string
	Limit       int64
}

func (q *Queries) SearchStopsByName(ctx context.Context, arg SearchStopsByNameParams) ([]Stop, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(arg.SearchQuery))) + "%"
	rows, err := q.query(ctx, searchStopsByName, pattern, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below
	var items []Stop
	for rows.Next() {
		var i Stop
		if err := rows.Scan(&i.ID, &i.Code, &i.Name, &i.Lat, &i.Lon); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
