package graph

import (
	"fmt"

	"github.com/leadmill/leadmill/pkg/models"
)

// Schedule computes a topological traversal plan for a validated
// workflow using Kahn's algorithm. Ties are broken by declaration order
// so the plan is stable for a given workflow.
func Schedule(w *models.Workflow) ([]string, error) {
	index := make(map[string]*models.WorkflowNode, len(w.Nodes))
	indegree := make(map[string]int, len(w.Nodes))

	for _, n := range w.Nodes {
		index[n.ID] = n
		if _, ok := indegree[n.ID]; !ok {
			indegree[n.ID] = 0
		}
	}

	for _, n := range w.Nodes {
		for _, e := range n.Next {
			if _, ok := index[e.To]; !ok {
				return nil, fmt.Errorf("edge from %s targets unknown node %s", n.ID, e.To)
			}

			indegree[e.To]++
		}
	}

	var queue []string

	for _, n := range w.Nodes {
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	plan := make([]string, 0, len(w.Nodes))

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		plan = append(plan, id)

		for _, e := range index[id].Next {
			indegree[e.To]--
			if indegree[e.To] == 0 {
				queue = append(queue, e.To)
			}
		}
	}

	if len(plan) != len(w.Nodes) {
		return nil, fmt.Errorf("workflow %s contains a cycle, no traversal plan exists", w.ID)
	}

	return plan, nil
}
