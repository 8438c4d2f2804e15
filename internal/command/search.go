package command

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxSearchDistance is the edit distance past which a non-substring
// match is considered noise.
const maxSearchDistance = 3

// Search returns commands matching query ordered by relevance: exact
// name, then prefix, then substring, then near misses by edit
// distance. An empty query returns every command in name order.
func (r *Registry) Search(query string) []Command {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return r.List()
	}

	type scored struct {
		cmd  Command
		rank int
	}
	var matches []scored
	for _, cmd := range r.commands {
		name := strings.ToLower(cmd.Name)
		title := strings.ToLower(cmd.Title)
		rank := -1
		switch {
		case name == q:
			rank = 0
		case strings.HasPrefix(name, q) || strings.HasPrefix(title, q):
			rank = 1
		case strings.Contains(name, q) || strings.Contains(title, q):
			rank = 2
		default:
			if d := levenshtein.ComputeDistance(q, name); d <= maxSearchDistance {
				rank = 2 + d
			}
		}
		if rank < 0 {
			continue
		}
		matches = append(matches, scored{cmd: cmd, rank: rank})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].rank != matches[j].rank {
			return matches[i].rank < matches[j].rank
		}
		return matches[i].cmd.Name < matches[j].cmd.Name
	})
	out := make([]Command, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.cmd)
	}
	return out
}
