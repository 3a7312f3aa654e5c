package gtfsdb

import (
	"context"
	"fmt"
)

// countedTables lists the tables reported by TableCounts, in report order.
var countedTables = []string{
	"routes",
	"calendar",
	"stops",
	"depots",
	"trips",
	"stop_times",
	"shapes",
	"shifts",
	"shift_trips",
	"import_metadata",
}

// TableCounts returns the row count of every planner table.
func (c *Client) TableCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(countedTables))
	for _, table := range countedTables {
		var count int
		// table names come from the fixed list above
		if err := c.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		counts[table] = count
	}
	return counts, nil
}

// TripKindCounts returns the number of trips per kind tag.
func (c *Client) TripKindCounts(ctx context.Context) (map[string]int, error) {
	rows, err := c.DB.QueryContext(ctx, "SELECT kind, COUNT(*) FROM trips GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("failed to count trips by kind: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}
