package ui

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/asheshgoplani/agent-watch/internal/agents"
)

// agentSource implements fuzzy.Source over the searchable text of agents.
type agentSource []agents.MonitoredAgent

func (s agentSource) String(i int) string {
	a := s[i]
	return strings.Join([]string{a.WindowName, a.Path, string(a.Tool), a.Branch, a.Target}, " ")
}

func (s agentSource) Len() int {
	return len(s)
}

// filterAgents returns the indices of agents matching query, in list order
// so the sidebar does not reshuffle as the user types. An empty query
// matches everything.
func filterAgents(list []agents.MonitoredAgent, query string) []int {
	query = strings.TrimSpace(query)
	if query == "" {
		idx := make([]int, len(list))
		for i := range list {
			idx[i] = i
		}
		return idx
	}

	matches := fuzzy.FindFrom(query, agentSource(list))
	idx := make([]int, 0, len(matches))
	for _, m := range matches {
		idx = append(idx, m.Index)
	}
	sort.Ints(idx)
	return idx
}
