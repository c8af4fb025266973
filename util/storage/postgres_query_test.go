package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1", placeholders(1, 1))
	assert.Equal(t, "$3, $4, $5", placeholders(3, 3))
}

func TestDepositCheckQuery(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	query := &DepositQuery{
		PlnIds:          []int64{1, 2},
		Uuids:           []string{"ABC"},
		After:           10,
		Limit:           50,
		Now:             now,
		RecheckInterval: 24 * time.Hour,
	}
	sql, args := depositCheckQuery(query)
	assert.Contains(t, sql, "d.id > $1")
	assert.Contains(t, sql, "a.pln_id IN ($2, $3)")
	assert.Contains(t, sql, "LOWER(d.uuid) IN ($4)")
	assert.Contains(t, sql, "(d.agreement IS NULL OR d.agreement < 1.0)")
	assert.Contains(t, sql, "(d.checked IS NULL OR d.checked < $5)")
	assert.Contains(t, sql, "ORDER BY d.id LIMIT $6")
	assert.Equal(t, []any{int64(10), int64(1), int64(2), "abc", now.Add(-24 * time.Hour), 50}, args)

	sql, args = depositCheckQuery(&DepositQuery{All: true})
	assert.NotContains(t, sql, "agreement IS NULL")
	assert.NotContains(t, sql, "LIMIT")
	assert.Equal(t, []any{int64(0)}, args)
}
