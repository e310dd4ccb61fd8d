// Package view selects, sorts and summarizes the record lists of an analysis.
package view

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/har-viewer/backend/internal/models"
)

var (
	ErrUnknownView = errors.New("unknown view")
	ErrUnknownSort = errors.New("unknown sort")
)

// Kind names one of the record lists of an analysis.
type Kind string

const (
	All     Kind = "all"
	Failed  Kind = "failed"
	Slow    Kind = "slow"
	Success Kind = "success"
)

// ParseKind validates a view name. An empty name selects All.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case "":
		return All, nil
	case All, Failed, Slow, Success:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}

// Select returns the records of kind in analyzer order. The returned slice for All
// is freshly allocated; the others alias the result's lists.
func Select(res *models.AnalysisResult, kind Kind) []models.TransactionRecord {
	if res == nil {
		return nil
	}
	switch kind {
	case Failed:
		return res.FailedRequestsList
	case Slow:
		return res.SlowRequestsList
	case Success:
		return res.SuccessRequestsList
	}
	return res.All()
}

// EmptyMessage is shown when a view has no records at all.
func EmptyMessage(kind Kind) string {
	switch kind {
	case Failed:
		return "No failed requests found. Great job!"
	case Slow:
		return "No slow requests found. Performance is optimal!"
	case Success:
		return "No successful requests found."
	}
	return "No requests found."
}

// Empty states of a displayed list.
const (
	EmptyNone      = ""
	EmptyNoData    = "no-data"
	EmptyNoMatches = "no-matches"
)

// EmptyState tells apart a view that is empty from one the query filtered out.
func EmptyState(viewLen, displayed int, query string) string {
	switch {
	case displayed > 0:
		return EmptyNone
	case viewLen == 0:
		return EmptyNoData
	case query != "":
		return EmptyNoMatches
	}
	return EmptyNoData
}

// Classify labels a record the way the dashboard badges it.
func Classify(rec *models.TransactionRecord, slowThresholdMs float64) Kind {
	switch {
	case rec.Failed():
		return Failed
	case rec.Time > slowThresholdMs:
		return Slow
	}
	return Success
}

// SortKey is a column the displayed list can be ordered by.
type SortKey string

const (
	SortNone    SortKey = "none"
	SortStarted SortKey = "started"
	SortTime    SortKey = "time"
	SortSize    SortKey = "size"
	SortStatus  SortKey = "status"
	SortMethod  SortKey = "method"
	SortURL     SortKey = "url"
)

// ParseSort validates a sort key and direction. Empty values mean backend order
// and ascending.
func ParseSort(key, dir string) (SortKey, bool, error) {
	k := SortKey(strings.ToLower(key))
	switch k {
	case "":
		k = SortNone
	case SortNone, SortStarted, SortTime, SortSize, SortStatus, SortMethod, SortURL:
	default:
		return "", false, fmt.Errorf("%w: %q", ErrUnknownSort, key)
	}

	switch strings.ToLower(dir) {
	case "", "asc":
		return k, false, nil
	case "desc":
		return k, true, nil
	}
	return "", false, fmt.Errorf("%w direction: %q", ErrUnknownSort, dir)
}

// SortIndexes returns the stable sort order of records as input positions. The
// input is never modified.
func SortIndexes(records []models.TransactionRecord, key SortKey, desc bool) []int {
	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}
	if key == SortNone || key == "" {
		return idx
	}

	less := lessFunc(key)
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := &records[idx[i]], &records[idx[j]]
		if desc {
			return less(b, a)
		}
		return less(a, b)
	})
	return idx
}

func lessFunc(key SortKey) func(a, b *models.TransactionRecord) bool {
	switch key {
	case SortStarted:
		return func(a, b *models.TransactionRecord) bool { return a.StartedDateTime < b.StartedDateTime }
	case SortTime:
		return func(a, b *models.TransactionRecord) bool { return a.Time < b.Time }
	case SortSize:
		return func(a, b *models.TransactionRecord) bool { return a.Size < b.Size }
	case SortStatus:
		return func(a, b *models.TransactionRecord) bool { return a.Status < b.Status }
	case SortMethod:
		return func(a, b *models.TransactionRecord) bool { return a.Method < b.Method }
	case SortURL:
		return func(a, b *models.TransactionRecord) bool { return a.URL < b.URL }
	}
	return func(a, b *models.TransactionRecord) bool { return false }
}

// FormatBytes renders a byte count in binary units with up to two decimals.
func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	sizes := []string{"Bytes", "KB", "MB", "GB"}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(sizes)-1 {
		v /= 1024
		i++
	}
	return trimDecimals(v) + " " + sizes[i]
}

// FormatDuration renders milliseconds as "Nms" below a second and "N.NNs" above.
func FormatDuration(ms float64) string {
	if ms < 1000 {
		return strconv.FormatFloat(math.Round(ms), 'f', 0, 64) + "ms"
	}
	return strconv.FormatFloat(ms/1000, 'f', 2, 64) + "s"
}

func trimDecimals(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// Summary holds the dashboard stat cards for an analysis.
type Summary struct {
	TotalRequests  int     `json:"totalRequests"`
	FailedRequests int     `json:"failedRequests"`
	SlowRequests   int     `json:"slowRequests"`
	TotalLoadTime  float64 `json:"totalLoadTime"`
	TotalSize      int64   `json:"totalSize"`
	LoadTime       string  `json:"loadTime"`
	Size           string  `json:"size"`
}

// Stats summarizes res.
func Stats(res *models.AnalysisResult) Summary {
	if res == nil {
		return Summary{LoadTime: FormatDuration(0), Size: FormatBytes(0)}
	}
	return Summary{
		TotalRequests:  res.TotalRequests,
		FailedRequests: res.FailedRequests,
		SlowRequests:   res.SlowRequests,
		TotalLoadTime:  res.TotalLoadTime,
		TotalSize:      res.TotalSize,
		LoadTime:       FormatDuration(res.TotalLoadTime),
		Size:           FormatBytes(res.TotalSize),
	}
}
