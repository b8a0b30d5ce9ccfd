package dal

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilterWhere(t *testing.T) {
	dollar := func(n int) string { return "$" + strconv.Itoa(n) }
	qmark := func(int) string { return "?" }

	where, args := Filter{}.Where(qmark)
	assert.Empty(t, where)
	assert.Empty(t, args)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := Filter{ScanID: "s1", Status: "UP", Since: since}

	where, args = f.Where(dollar)
	assert.Equal(t, "WHERE scan_id = $1 AND LOWER(status) = $2 AND scanned_at >= $3", where)
	assert.Equal(t, []any{"s1", "up", since.UnixNano()}, args)

	where, _ = Filter{Address: "10.0.0.1", RangeLabel: "10.0.0.0/24"}.Where(qmark)
	assert.Equal(t, "WHERE ip = ? AND subnet = ?", where)
}
