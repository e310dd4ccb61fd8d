package session

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/har-viewer/backend/internal/logging"
	"github.com/har-viewer/backend/internal/models"
	"github.com/har-viewer/backend/internal/search"
	"github.com/har-viewer/backend/internal/tree"
	"github.com/har-viewer/backend/internal/view"
)

var (
	ErrUnknownField = errors.New("unknown body field")
	ErrUnknownPath  = errors.New("no expandable node at path")
)

// Body fields a tree can be drawn for.
const (
	FieldPayload  = "payload"
	FieldResponse = "response"
)

// SearchState is the outcome of a query change or a navigation step.
type SearchState struct {
	Session models.ViewSession     `json:"session"`
	Matches []models.MatchLocation `json:"matches"`
	Cursor  int                    `json:"cursor"`
	Current *models.MatchLocation  `json:"current,omitempty"`
}

// Row is one displayed record.
type Row struct {
	Index  int                      `json:"index" msgpack:"index"`
	Class  view.Kind                `json:"class" msgpack:"class"`
	Record models.TransactionRecord `json:"record" msgpack:"record"`
}

// Page is a window of the displayed list.
type Page struct {
	Rows         []Row  `json:"rows" msgpack:"rows"`
	Offset       int    `json:"offset" msgpack:"offset"`
	Total        int    `json:"total" msgpack:"total"`
	Query        string `json:"query" msgpack:"query"`
	EmptyState   string `json:"emptyState" msgpack:"emptyState"`
	EmptyMessage string `json:"emptyMessage,omitempty" msgpack:"emptyMessage,omitempty"`
}

// TreeView is the rendered body of one displayed record.
type TreeView struct {
	Index int         `json:"index"`
	Field string      `json:"field"`
	Root  *tree.Node  `json:"root"`
	Lines []tree.Line `json:"lines"`
}

// SetView switches the view kind and sort order. The query is kept and re-run.
func (m *Manager) SetView(id, kind, sortBy, sortDir string) (*models.ViewSession, error) {
	k, err := view.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	key, desc, err := view.ParseSort(sortBy, sortDir)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	state.kind, state.sortKey, state.desc = k, key, desc
	m.recompute(state)

	cp := *state.Session
	return &cp, nil
}

// SetQuery replaces the active query and recomputes the displayed list and match
// sequence. Clearing a non-empty query drops every manual tree toggle.
func (m *Manager) SetQuery(id, query string) (*SearchState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if state.query != "" && query == "" {
		state.toggles = make(map[string]map[string]bool)
	}
	state.query = query
	m.recompute(state)

	logging.L.Debug("query applied",
		zap.String("session", logging.ShortID(id)),
		zap.Int("displayed", len(state.displayed)),
		zap.Int("matches", state.nav.Len()))
	return searchState(state), nil
}

// Navigate moves the match cursor one step.
func (m *Manager) Navigate(id string, dir search.Direction) (*SearchState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	state.nav.Move(dir)
	state.Session.Cursor = state.nav.Cursor()
	return searchState(state), nil
}

// Matches returns the current search state without changing it.
func (m *Manager) Matches(id string) (*SearchState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return searchState(state), nil
}

func searchState(state *SessionState) *SearchState {
	out := &SearchState{
		Session: *state.Session,
		Matches: state.nav.Matches(),
		Cursor:  state.nav.Cursor(),
	}
	if out.Matches == nil {
		out.Matches = []models.MatchLocation{}
	}
	if cur, ok := state.nav.Current(); ok {
		out.Current = &cur
	}
	return out
}

// Records returns a window of the displayed list. A limit of zero or less returns
// everything from offset.
func (m *Manager) Records(id string, offset, limit int) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	total := len(state.displayed)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	page := &Page{
		Rows:       make([]Row, 0, end-offset),
		Offset:     offset,
		Total:      total,
		Query:      state.query,
		EmptyState: view.EmptyState(state.viewLen, total, state.query),
	}
	if page.EmptyState == view.EmptyNoData {
		page.EmptyMessage = view.EmptyMessage(state.kind)
	}
	for i := offset; i < end; i++ {
		page.Rows = append(page.Rows, m.row(state, i))
	}
	return page, nil
}

// Record returns one displayed record by its position in the displayed list.
func (m *Manager) Record(id string, index int) (*Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := checkIndex(state, index); err != nil {
		return nil, err
	}
	row := m.row(state, index)
	return &row, nil
}

func (m *Manager) row(state *SessionState, i int) Row {
	rec := state.displayed[i]
	return Row{Index: i, Class: view.Classify(&rec, m.opts.SlowThresholdMs), Record: rec}
}

func checkIndex(state *SessionState, index int) error {
	if index < 0 || index >= len(state.displayed) {
		return fmt.Errorf("%w: %d of %d", ErrRecordOutOfRange, index, len(state.displayed))
	}
	return nil
}

// Tree renders the payload or response body of a displayed record against the
// active query and the manual toggles held for it.
func (m *Manager) Tree(id string, index int, field string, expandAll bool) (*TreeView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	body, key, err := treeSource(state, index, field)
	if err != nil {
		return nil, err
	}

	root := tree.BuildText(body, state.query, tree.Options{
		AlwaysExpanded: expandAll,
		Expanded:       state.toggles[key],
	})
	return &TreeView{Index: index, Field: field, Root: root, Lines: tree.Lines(root)}, nil
}

// ToggleNode flips the drawn state of the container at path. expandAll must match
// the Tree call that drew the node. Containers the query forces open stay open.
func (m *Manager) ToggleNode(id string, index int, field, path string, expandAll bool) (*TreeView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	body, key, err := treeSource(state, index, field)
	if err != nil {
		return nil, err
	}

	toggles := state.toggles[key]
	if toggles == nil {
		toggles = make(map[string]bool)
	}
	opts := tree.Options{AlwaysExpanded: expandAll, Expanded: toggles}

	node := tree.BuildText(body, state.query, opts).Find(path)
	if node == nil || !node.Expandable {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}

	prev, had := toggles[path]
	toggles[path] = !node.Expanded
	root := tree.BuildText(body, state.query, opts)
	if root.Find(path).Expanded == node.Expanded {
		// forced open by the query; keep whatever the user had before
		if had {
			toggles[path] = prev
		} else {
			delete(toggles, path)
		}
	}
	state.toggles[key] = toggles

	return &TreeView{Index: index, Field: field, Root: root, Lines: tree.Lines(root)}, nil
}

// treeSource returns the body text of a displayed record and the key its toggles
// are stored under. Keys use the record's position in its view, so toggles survive
// re-sorting and re-filtering.
func treeSource(state *SessionState, index int, field string) (string, string, error) {
	if err := checkIndex(state, index); err != nil {
		return "", "", err
	}
	rec := &state.displayed[index]

	var body string
	switch field {
	case FieldPayload:
		body = rec.RequestBody
	case FieldResponse:
		body = rec.ResponseBody
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	key := string(state.kind) + "/" + strconv.Itoa(state.sources[index]) + "/" + field
	return body, key, nil
}
