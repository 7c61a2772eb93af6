// Package graph builds the task dependency graph and derives the metrics
// bundle that the detector and forecaster score against.
//
// An edge A->B means A is a prerequisite of B: dependencies flow toward the
// dependent task. Nodes keep input order so that every traversal, and every
// metric derived from one, is deterministic for a given task list.
package graph

import (
	"github.com/opspilot/opspilot/internal/task"
)

// Edge is a single prerequisite relation.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is a directed dependency graph over task IDs. It is built once per
// run and never mutated afterwards.
type Graph struct {
	order []string
	tasks map[string]task.Task
	succ  map[string][]string
	pred  map[string][]string
	edges []Edge
}

// Build creates the dependency graph for tasks. Dependency IDs that do not
// name another task in the set are dropped, as are self-dependencies and
// repeated edges. When two records share an ID the later record's fields win
// but the node keeps its first position.
func Build(tasks []task.Task) *Graph {
	g := &Graph{
		tasks: make(map[string]task.Task, len(tasks)),
		succ:  make(map[string][]string, len(tasks)),
		pred:  make(map[string][]string, len(tasks)),
	}

	for _, t := range tasks {
		if _, seen := g.tasks[t.ID]; !seen {
			g.order = append(g.order, t.ID)
		}
		g.tasks[t.ID] = t
	}

	seen := make(map[Edge]bool)
	for _, t := range tasks {
		for _, dep := range t.DependencyIDs {
			if dep == t.ID {
				continue
			}
			if _, ok := g.tasks[dep]; !ok {
				continue
			}
			e := Edge{From: dep, To: t.ID}
			if seen[e] {
				continue
			}
			seen[e] = true
			g.succ[dep] = append(g.succ[dep], t.ID)
			g.pred[t.ID] = append(g.pred[t.ID], dep)
			g.edges = append(g.edges, e)
		}
	}
	return g
}

// Nodes returns task IDs in input order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// NodeCount returns the number of tasks in the graph.
func (g *Graph) NodeCount() int { return len(g.order) }

// EdgeCount returns the number of prerequisite edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Edges returns the flat edge list in insertion order.
func (g *Graph) Edges() []Edge {
	return append(make([]Edge, 0, len(g.edges)), g.edges...)
}

// HasNode reports whether id is a node of the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.tasks[id]
	return ok
}

// Task returns the record stored on node id.
func (g *Graph) Task(id string) (task.Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Predecessors returns the direct prerequisites of id.
func (g *Graph) Predecessors(id string) []string {
	return append([]string(nil), g.pred[id]...)
}

// Successors returns the tasks that directly depend on id.
func (g *Graph) Successors(id string) []string {
	return append([]string(nil), g.succ[id]...)
}

// InDegree returns the number of direct prerequisites of id.
func (g *Graph) InDegree(id string) int { return len(g.pred[id]) }

// OutDegree returns the number of direct dependents of id.
func (g *Graph) OutDegree(id string) int { return len(g.succ[id]) }

// Ancestors returns every task id transitively depends on, excluding id
// itself, in breadth-first order.
func (g *Graph) Ancestors(id string) []string {
	if !g.HasNode(id) {
		return nil
	}
	visited := map[string]bool{id: true}
	var out []string
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range g.pred[cur] {
			if visited[p] {
				continue
			}
			visited[p] = true
			out = append(out, p)
			queue = append(queue, p)
		}
	}
	return out
}

// index maps each node to its position in input order.
func (g *Graph) index() map[string]int {
	idx := make(map[string]int, len(g.order))
	for i, id := range g.order {
		idx[id] = i
	}
	return idx
}
