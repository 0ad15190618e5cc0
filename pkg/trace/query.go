package trace

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/openclaw/aasc/pkg/contracts"
)

// SortField selects which trace field to sort query results by.
type SortField string

const (
	SortByTimestamp SortField = "timestamp"
	SortByCost      SortField = "cost"
	SortByDuration  SortField = "duration"
)

// QueryParams filters and paginates a trace query. Index is nil-able:
// when set and SubtaskOf is also set, QueryTraces consults the SQLite
// side-index (SPEC_FULL.md §4.18) as a fast pre-filter over trace ids
// before reading the JSONL bodies for the matching records, instead of
// evaluating the subtaskOf filter against every trace in baseDir.
type QueryParams struct {
	BaseDir        string
	Keyword        string
	Classification string
	SubtaskOf      *string
	Since          *time.Time
	Until          *time.Time
	SortBy         SortField
	Descending     *bool
	Offset         int
	Limit          int
	Index          *Index
}

func (p QueryParams) descending() bool {
	return p.Descending == nil || *p.Descending
}

func (p QueryParams) limit() int {
	if p.Limit > 0 {
		return p.Limit
	}
	return 50
}

func (p QueryParams) sortBy() SortField {
	if p.SortBy == "" {
		return SortByTimestamp
	}
	return p.SortBy
}

// jsonlFiles walks baseDir for every *.jsonl trace file.
func jsonlFiles(baseDir string) []string {
	var out []string
	_ = filepath.WalkDir(baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d == nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".jsonl") {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out
}

func readTraceLines(path string) []contracts.ReasoningTrace {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var traces []contracts.ReasoningTrace
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var tr contracts.ReasoningTrace
		if err := json.Unmarshal([]byte(line), &tr); err != nil {
			continue // malformed lines are skipped, never fatal
		}
		traces = append(traces, tr)
	}
	return traces
}

func matchesFilters(tr contracts.ReasoningTrace, p QueryParams) bool {
	if p.Keyword != "" {
		kw := strings.ToLower(p.Keyword)
		haystacks := []string{tr.Decision.Action, tr.Decision.Reasoning}
		if tr.Input.UserMessage != nil {
			haystacks = append(haystacks, *tr.Input.UserMessage)
		}
		found := false
		for _, h := range haystacks {
			if strings.Contains(strings.ToLower(h), kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if p.Classification != "" && tr.Decision.Classification != p.Classification {
		return false
	}

	if p.SubtaskOf != nil {
		if tr.Input.SubtaskOf == nil || *tr.Input.SubtaskOf != *p.SubtaskOf {
			return false
		}
	}

	if p.Since != nil || p.Until != nil {
		ts, err := time.Parse(time.RFC3339Nano, tr.Timestamp)
		if err != nil {
			return false
		}
		if p.Since != nil && ts.Before(*p.Since) {
			return false
		}
		if p.Until != nil && ts.After(*p.Until) {
			return false
		}
	}

	return true
}

func sortKey(tr contracts.ReasoningTrace, field SortField) float64 {
	switch field {
	case SortByCost:
		return tr.Outcome.EstimatedCost
	case SortByDuration:
		return float64(tr.Outcome.DurationMs)
	default:
		ts, err := time.Parse(time.RFC3339Nano, tr.Timestamp)
		if err != nil {
			return 0
		}
		return float64(ts.UnixNano())
	}
}

// QueryTraces implements spec §4.15's streaming, filtering, sorting,
// paginating query.
func QueryTraces(p QueryParams) []contracts.ReasoningTrace {
	var subtaskIDs map[string]bool
	if p.Index != nil && p.SubtaskOf != nil {
		subtaskIDs = make(map[string]bool)
		for _, id := range p.Index.IndexedIDs(*p.SubtaskOf) {
			subtaskIDs[id] = true
		}
	}

	var matched []contracts.ReasoningTrace
	for _, path := range jsonlFiles(p.BaseDir) {
		for _, tr := range readTraceLines(path) {
			if subtaskIDs != nil && !subtaskIDs[tr.ID] {
				continue
			}
			if matchesFilters(tr, p) {
				matched = append(matched, tr)
			}
		}
	}

	desc := p.descending()
	field := p.sortBy()
	sort.SliceStable(matched, func(i, j int) bool {
		ki, kj := sortKey(matched[i], field), sortKey(matched[j], field)
		if desc {
			return ki > kj
		}
		return ki < kj
	})

	offset := p.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]

	limit := p.limit()
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched
}

// GetTrace scans every trace file for the first record with the given id.
func GetTrace(baseDir, id string) (contracts.ReasoningTrace, bool) {
	for _, path := range jsonlFiles(baseDir) {
		for _, tr := range readTraceLines(path) {
			if tr.ID == id {
				return tr, true
			}
		}
	}
	return contracts.ReasoningTrace{}, false
}

// GetSubtasks delegates to QueryTraces with subtaskOf=parentID,
// ascending order, limit 1000. idx is optional (variadic so existing
// callers keep compiling); when supplied, it is passed through to
// QueryTraces as the side-index pre-filter.
func GetSubtasks(baseDir, parentID string, idx ...*Index) []contracts.ReasoningTrace {
	ascending := false
	var index *Index
	if len(idx) > 0 {
		index = idx[0]
	}
	return QueryTraces(QueryParams{
		BaseDir:    baseDir,
		SubtaskOf:  &parentID,
		Descending: &ascending,
		Limit:      1000,
		Index:      index,
	})
}
