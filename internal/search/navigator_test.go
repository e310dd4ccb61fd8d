package search

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/har-viewer/backend/internal/models"
)

func TestNavigate(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		cursor int
		dir    Direction
		want   int
	}{
		{"next middle", 3, 1, Next, 2},
		{"next wraps", 3, 2, Next, 0},
		{"prev middle", 3, 1, Prev, 0},
		{"prev wraps", 3, 0, Prev, 2},
		{"empty next no-op", 0, -1, Next, -1},
		{"empty prev no-op", 0, -1, Prev, -1},
		{"unset next lands on first", 4, -1, Next, 0},
		{"unset prev lands on last", 4, -1, Prev, 3},
		{"single next", 1, 0, Next, 0},
		{"stale negative next lands on first", 3, -5, Next, 0},
		{"stale negative prev lands on last", 3, -5, Prev, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Navigate(tt.n, tt.cursor, tt.dir))
		})
	}
}

func TestNavigate_Circular(t *testing.T) {
	for n := 1; n <= 7; n++ {
		for start := 0; start < n; start++ {
			c := start
			for i := 0; i < n; i++ {
				c = Navigate(n, c, Next)
			}
			assert.Equal(t, start, c, "n=%d start=%d", n, start)
		}
	}
}

func TestNavigate_PrevInvertsNext(t *testing.T) {
	for n := 1; n <= 7; n++ {
		for c := 0; c < n; c++ {
			assert.Equal(t, c, Navigate(n, Navigate(n, c, Next), Prev))
			assert.Equal(t, c, Navigate(n, Navigate(n, c, Prev), Next))
		}
	}
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("prev")
	require.NoError(t, err)
	assert.Equal(t, Prev, d)
	assert.Equal(t, "prev", d.String())

	d, err = ParseDirection("next")
	require.NoError(t, err)
	assert.Equal(t, Next, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}

func TestNavigator(t *testing.T) {
	var zero Navigator
	assert.Equal(t, -1, zero.Cursor())
	_, ok := zero.Current()
	assert.False(t, ok)
	assert.Equal(t, -1, zero.Move(Next))

	matches := []models.MatchLocation{
		{RecordIndex: 0, Field: models.FieldURL, MatchedText: "a"},
		{RecordIndex: 1, Field: models.FieldMethod, MatchedText: "b"},
		{RecordIndex: 1, Field: models.FieldHeader, Path: "X", MatchedText: "c"},
	}
	var nav Navigator
	nav.Reset(matches)
	assert.Equal(t, 0, nav.Cursor())
	assert.Equal(t, 3, nav.Len())

	assert.Equal(t, 1, nav.Move(Next))
	cur, ok := nav.Current()
	require.True(t, ok)
	assert.Equal(t, "b", cur.MatchedText)

	assert.Equal(t, 2, nav.Move(Next))
	assert.Equal(t, 0, nav.Move(Next))
	assert.Equal(t, 2, nav.Move(Prev))
	assert.Equal(t, 1, nav.Move(Prev))

	nav.Reset(nil)
	assert.Equal(t, -1, nav.Cursor())
	assert.Equal(t, -1, nav.Move(Prev))

	nav.Reset(matches[:1])
	assert.Equal(t, 0, nav.Cursor())
}

func TestDebouncer_LastWriteWins(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls int32
	var last atomic.Value

	for _, q := range []string{"f", "fa", "fai", "fail"} {
		q := q
		d.Trigger(func() {
			atomic.AddInt32(&calls, 1)
			last.Store(q)
		})
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "fail", last.Load())
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls int32
	d.Trigger(func() { atomic.AddInt32(&calls, 1) })
	d.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestDebouncer_DefaultDelay(t *testing.T) {
	d := NewDebouncer(0)
	assert.Equal(t, DefaultDebounce, d.delay)
}
