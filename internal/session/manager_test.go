package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/har-viewer/backend/internal/metrics"
	"github.com/har-viewer/backend/internal/models"
	"github.com/har-viewer/backend/internal/search"
	"github.com/har-viewer/backend/internal/testutil"
	"github.com/har-viewer/backend/internal/tree"
	"github.com/har-viewer/backend/internal/view"
)

func newSession(t *testing.T, opts Options) (*Manager, string) {
	t.Helper()
	m := NewManager(opts)
	sess, err := m.Create("file-1", "capture.har", testutil.SampleResult())
	require.NoError(t, err)
	return m, sess.ID
}

func lineFor(lines []tree.Line, path string) *tree.Line {
	for i := range lines {
		if lines[i].Path == path && lines[i].Toggle != tree.ToggleNone {
			return &lines[i]
		}
	}
	return nil
}

func TestCreateAndGet(t *testing.T) {
	met := metrics.New()
	m, id := newSession(t, Options{Metrics: met})

	sess, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusReady, sess.Status)
	assert.Equal(t, "all", sess.View)
	assert.Equal(t, "none", sess.SortBy)
	assert.Equal(t, "asc", sess.SortDir)
	assert.Equal(t, 5, sess.Displayed)
	assert.Equal(t, 0, sess.MatchCount)
	assert.Equal(t, -1, sess.Cursor)

	assert.Len(t, m.List(), 1)
	assert.Equal(t, 1.0, promtest.ToFloat64(met.ActiveSessions))

	_, err = m.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSetQueryAndNavigate(t *testing.T) {
	m, id := newSession(t, Options{})

	st, err := m.SetQuery(id, "fail")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Session.Displayed)
	require.Len(t, st.Matches, 2)
	assert.Equal(t, models.FieldURL, st.Matches[0].Field)
	assert.Equal(t, "failme", st.Matches[0].MatchedText)
	assert.Equal(t, models.FieldResponseBody, st.Matches[1].Field)
	assert.Equal(t, "error.code", st.Matches[1].Path)
	assert.Equal(t, 0, st.Cursor)
	require.NotNil(t, st.Current)
	assert.Equal(t, models.FieldURL, st.Current.Field)

	tests := []struct {
		dir  search.Direction
		want int
	}{
		{search.Next, 1},
		{search.Next, 0},
		{search.Prev, 1},
		{search.Prev, 0},
	}
	for _, tt := range tests {
		st, err = m.Navigate(id, tt.dir)
		require.NoError(t, err)
		assert.Equal(t, tt.want, st.Cursor)
		assert.Equal(t, tt.want, st.Session.Cursor)
	}

	st, err = m.SetQuery(id, "")
	require.NoError(t, err)
	assert.Equal(t, 5, st.Session.Displayed)
	assert.Empty(t, st.Matches)
	assert.Nil(t, st.Current)
	assert.Equal(t, -1, st.Cursor)
}

func TestNavigateWithoutMatchesIsNoop(t *testing.T) {
	m, id := newSession(t, Options{})
	st, err := m.Navigate(id, search.Next)
	require.NoError(t, err)
	assert.Equal(t, -1, st.Cursor)
	assert.Nil(t, st.Current)
}

func TestRecordsEmptyStates(t *testing.T) {
	m, id := newSession(t, Options{})

	_, err := m.SetQuery(id, "zzz-not-there")
	require.NoError(t, err)
	page, err := m.Records(id, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, view.EmptyNoMatches, page.EmptyState)
	assert.Empty(t, page.EmptyMessage)

	res := testutil.SampleResult()
	res.FailedRequestsList = nil
	sess, err := m.Create("file-2", "ok.har", res)
	require.NoError(t, err)
	_, err = m.SetView(sess.ID, "failed", "", "")
	require.NoError(t, err)
	page, err = m.Records(sess.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, view.EmptyNoData, page.EmptyState)
	assert.Equal(t, "No failed requests found. Great job!", page.EmptyMessage)
}

func TestRecordsPaging(t *testing.T) {
	m, id := newSession(t, Options{})

	page, err := m.Records(id, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.Offset)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, 2, page.Rows[0].Index)
	assert.Equal(t, "https://api.example.com/a", page.Rows[0].Record.URL)
	assert.Equal(t, view.Success, page.Rows[0].Class)
	assert.Equal(t, view.Slow, page.Rows[1].Class)

	page, err = m.Records(id, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Equal(t, view.EmptyNone, page.EmptyState)

	row, err := m.Record(id, 0)
	require.NoError(t, err)
	assert.Equal(t, view.Failed, row.Class)

	_, err = m.Record(id, 5)
	assert.True(t, errors.Is(err, ErrRecordOutOfRange))
}

func TestSetViewAndSort(t *testing.T) {
	m, id := newSession(t, Options{})

	sess, err := m.SetView(id, "failed", "status", "asc")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Displayed)
	page, err := m.Records(id, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 401, page.Rows[0].Record.Status)
	assert.Equal(t, 500, page.Rows[1].Record.Status)

	sess, err = m.SetView(id, "all", "time", "desc")
	require.NoError(t, err)
	assert.Equal(t, "desc", sess.SortDir)
	page, err = m.Records(id, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/slow", page.Rows[0].Record.URL)

	_, err = m.SetView(id, "bogus", "", "")
	assert.True(t, errors.Is(err, view.ErrUnknownView))
	_, err = m.SetView(id, "all", "color", "")
	assert.True(t, errors.Is(err, view.ErrUnknownSort))
}

func TestSetViewKeepsQuery(t *testing.T) {
	m, id := newSession(t, Options{})

	_, err := m.SetQuery(id, "example")
	require.NoError(t, err)
	sess, err := m.SetView(id, "success", "", "")
	require.NoError(t, err)
	assert.Equal(t, "example", sess.Query)
	assert.Equal(t, 3, sess.Displayed)
	assert.Equal(t, 0, sess.Cursor)
}

func TestTreeRendering(t *testing.T) {
	m, id := newSession(t, Options{})

	tv, err := m.Tree(id, 2, FieldResponse, false)
	require.NoError(t, err)
	assert.True(t, tv.Root.Expanded)
	assert.False(t, tv.Root.Find("items").Expanded)

	tv, err = m.Tree(id, 2, FieldResponse, true)
	require.NoError(t, err)
	assert.True(t, tv.Root.Find("items.1").Expanded)

	tv, err = m.Tree(id, 3, FieldResponse, false)
	require.NoError(t, err)
	assert.Equal(t, "string", tv.Root.Kind)

	_, err = m.Tree(id, 2, "headers", false)
	assert.True(t, errors.Is(err, ErrUnknownField))
	_, err = m.Tree(id, 9, FieldResponse, false)
	assert.True(t, errors.Is(err, ErrRecordOutOfRange))
}

func TestTreeQueryForcesExpansion(t *testing.T) {
	m, id := newSession(t, Options{})

	_, err := m.SetQuery(id, "alpha")
	require.NoError(t, err)
	tv, err := m.Tree(id, 0, FieldResponse, false)
	require.NoError(t, err)
	assert.True(t, tv.Root.Find("items").Expanded)
	assert.True(t, tv.Root.Find("items.0").Expanded)
	assert.False(t, tv.Root.Find("items.1").Expanded)

	tv, err = m.ToggleNode(id, 0, FieldResponse, "items", false)
	require.NoError(t, err)
	assert.True(t, tv.Root.Find("items").Expanded, "query-forced node stays open")

	_, err = m.ToggleNode(id, 0, FieldResponse, "total", false)
	assert.True(t, errors.Is(err, ErrUnknownPath))
}

func TestToggleSurvivesQueryChangeButNotClear(t *testing.T) {
	m, id := newSession(t, Options{})

	tv, err := m.ToggleNode(id, 2, FieldResponse, "items", false)
	require.NoError(t, err)
	assert.True(t, tv.Root.Find("items").Expanded)
	require.NotNil(t, lineFor(tv.Lines, "items"))
	assert.Equal(t, tree.ToggleExpanded, lineFor(tv.Lines, "items").Toggle)

	// every record matches, so the same record stays at index 2
	_, err = m.SetQuery(id, "api")
	require.NoError(t, err)
	tv, err = m.Tree(id, 2, FieldResponse, false)
	require.NoError(t, err)
	assert.True(t, tv.Root.Find("items").Expanded)

	// clearing a non-empty query collapses every manually opened node
	_, err = m.SetQuery(id, "")
	require.NoError(t, err)
	tv, err = m.Tree(id, 2, FieldResponse, false)
	require.NoError(t, err)
	assert.False(t, tv.Root.Find("items").Expanded)
	assert.True(t, tv.Root.Expanded)
}

func TestToggleUnderExpandAll(t *testing.T) {
	m := NewManager(Options{})
	sess, err := m.Create("file-1", "nested.har", &models.AnalysisResult{
		TotalRequests: 1,
		SuccessRequestsList: []models.TransactionRecord{{
			Method:       "GET",
			URL:          "https://api.example.com/nested",
			Status:       200,
			ResponseBody: `{"a":{"b":{"c":1}}}`,
		}},
	})
	require.NoError(t, err)
	id := sess.ID

	tv, err := m.Tree(id, 0, FieldResponse, true)
	require.NoError(t, err)
	require.True(t, tv.Root.Find("a.b").Expanded)

	// one toggle closes what the expanded view drew open
	tv, err = m.ToggleNode(id, 0, FieldResponse, "a.b", true)
	require.NoError(t, err)
	assert.False(t, tv.Root.Find("a.b").Expanded)
	assert.True(t, tv.Root.Find("a").Expanded)

	tv, err = m.Tree(id, 0, FieldResponse, true)
	require.NoError(t, err)
	assert.False(t, tv.Root.Find("a.b").Expanded)

	tv, err = m.ToggleNode(id, 0, FieldResponse, "a.b", true)
	require.NoError(t, err)
	assert.True(t, tv.Root.Find("a.b").Expanded)
}

func TestToggleCollapsesRoot(t *testing.T) {
	m, id := newSession(t, Options{})

	tv, err := m.ToggleNode(id, 2, FieldResponse, "", false)
	require.NoError(t, err)
	assert.False(t, tv.Root.Expanded)
	require.Len(t, tv.Lines, 1)
	assert.Equal(t, tree.ToggleCollapsed, tv.Lines[0].Toggle)
}

func TestTogglesFollowRecordAcrossSort(t *testing.T) {
	m, id := newSession(t, Options{})

	_, err := m.ToggleNode(id, 2, FieldResponse, "items", false)
	require.NoError(t, err)

	// /a is the fastest record, so it moves to the top
	_, err = m.SetView(id, "all", "time", "asc")
	require.NoError(t, err)
	row, err := m.Record(id, 0)
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com/a", row.Record.URL)

	tv, err := m.Tree(id, 0, FieldResponse, false)
	require.NoError(t, err)
	assert.True(t, tv.Root.Find("items").Expanded)
}

func TestRedactOnCreate(t *testing.T) {
	m, id := newSession(t, Options{Redact: true})

	row, err := m.Record(id, 1)
	require.NoError(t, err)
	assert.Equal(t, "***", row.Record.RequestHeaders[0].Value)
	assert.Contains(t, row.Record.RequestBody, `"password":"***"`)

	st, err := m.SetQuery(id, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Session.Displayed)
}

func TestDelete(t *testing.T) {
	m, id := newSession(t, Options{})

	fileID, err := m.Delete(id)
	require.NoError(t, err)
	assert.Equal(t, "file-1", fileID)

	_, err = m.Get(id)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = m.Delete(id)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCapacityEviction(t *testing.T) {
	var evicted []string
	m := NewManager(Options{MaxSessions: 2, OnEvict: func(id string) { evicted = append(evicted, id) }})

	first, err := m.Create("file-1", "a.har", testutil.SampleResult())
	require.NoError(t, err)
	second, err := m.Create("file-2", "b.har", testutil.SampleResult())
	require.NoError(t, err)

	m.mu.Lock()
	m.sessions[first.ID].LastAccessed = time.Now().Add(-time.Minute)
	m.sessions[second.ID].LastAccessed = time.Now()
	m.mu.Unlock()

	_, err = m.Create("file-3", "c.har", testutil.SampleResult())
	require.NoError(t, err)

	assert.Equal(t, []string{"file-1"}, evicted)
	assert.Len(t, m.List(), 2)
	_, err = m.Get(second.ID)
	assert.NoError(t, err)
}

func TestConcurrentCreateRespectsCapacity(t *testing.T) {
	m := NewManager(Options{MaxSessions: 3})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Create(fmt.Sprintf("file-%d", i), "capture.har", testutil.SampleResult())
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, m.List(), 3)
}

func TestCleanupOldSessions(t *testing.T) {
	var evicted []string
	m := NewManager(Options{OnEvict: func(id string) { evicted = append(evicted, id) }})

	idle, err := m.Create("file-idle", "a.har", testutil.SampleResult())
	require.NoError(t, err)
	active, err := m.Create("file-active", "b.har", testutil.SampleResult())
	require.NoError(t, err)

	m.mu.Lock()
	m.sessions[idle.ID].LastAccessed = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	assert.True(t, m.TouchSession(active.ID))
	assert.False(t, m.TouchSession("missing"))

	n := m.CleanupOldSessions(30 * time.Minute)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"file-idle"}, evicted)
	_, err = m.Get(active.ID)
	assert.NoError(t, err)
}

func TestStats(t *testing.T) {
	m, id := newSession(t, Options{})

	s, err := m.Stats(id)
	require.NoError(t, err)
	assert.Equal(t, 5, s.TotalRequests)
	assert.Equal(t, 2, s.FailedRequests)
	assert.Equal(t, "2.80s", s.LoadTime)
}
