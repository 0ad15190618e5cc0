package trace

import (
	"regexp"
	"strings"
)

// DecomposeResult is the outcome of the conservative heuristic splitter.
type DecomposeResult struct {
	Decomposed bool
	Subtasks   []string
}

var numberedListAnchor = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+`)

var sequentialSplit = regexp.MustCompile(`(?i)[.;,]\s+(then|and then|after that|next,?|finally)\b\s*`)
var sequentialProbe = regexp.MustCompile(`(?i)\b(then|and\s+then|after\s+that|next,?|finally)\b`)

var collapseNewlines = regexp.MustCompile(`\s*\n\s*`)

// DecomposeTask implements spec §4.15's numbered-list-then-sequential-marker
// heuristic splitter, in that priority order.
func DecomposeTask(text string) DecomposeResult {
	if locs := numberedListAnchor.FindAllStringIndex(text, -1); len(locs) >= 2 {
		var subtasks []string
		for i, loc := range locs {
			start := loc[1]
			end := len(text)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			chunk := strings.TrimSpace(collapseNewlines.ReplaceAllString(text[start:end], " "))
			if chunk != "" {
				subtasks = append(subtasks, chunk)
			}
		}
		if len(subtasks) >= 2 {
			return DecomposeResult{Decomposed: true, Subtasks: subtasks}
		}
	}

	if sequentialProbe.MatchString(text) {
		parts := sequentialSplit.Split(text, -1)
		var subtasks []string
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				subtasks = append(subtasks, p)
			}
		}
		if len(subtasks) >= 2 {
			return DecomposeResult{Decomposed: true, Subtasks: subtasks}
		}
	}

	return DecomposeResult{Decomposed: false, Subtasks: []string{}}
}
