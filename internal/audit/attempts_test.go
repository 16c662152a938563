package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordArgsNullsEmptyFields(t *testing.T) {
	args := recordArgs(Attempt{JobID: "j1", Kind: "slider", Outcome: "solved", Latency: 1500 * time.Microsecond})
	assert.Equal(t, "j1", args[0])
	assert.Equal(t, int64(1), args[4])
	assert.Nil(t, args[3].(*string))
	assert.Nil(t, args[5].(*float64))
	assert.Equal(t, false, args[6])
}

func TestRecordArgsKeepsErrorAndScore(t *testing.T) {
	args := recordArgs(Attempt{Kind: "shape", Outcome: "refresh", ErrorKind: "no_match", Score: 0.82, Cached: true})
	if assert.NotNil(t, args[3].(*string)) {
		assert.Equal(t, "no_match", *args[3].(*string))
	}
	if assert.NotNil(t, args[5].(*float64)) {
		assert.InDelta(t, 0.82, *args[5].(*float64), 1e-9)
	}
	assert.Equal(t, true, args[6])
}

func TestMigrationsAreIdempotent(t *testing.T) {
	for _, m := range migrations {
		assert.Contains(t, m.query, "IF NOT EXISTS", m.name)
	}
}
