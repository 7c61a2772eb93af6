package graph

import "sort"

// WeakComponents returns the number of weakly connected components.
func (g *Graph) WeakComponents() int {
	visited := make(map[string]bool, len(g.order))
	count := 0
	for _, start := range g.order {
		if visited[start] {
			continue
		}
		count++
		visited[start] = true
		stack := []string{start}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for nb := range g.neighbors(cur) {
				if !visited[nb] {
					visited[nb] = true
					stack = append(stack, nb)
				}
			}
		}
	}
	return count
}

// IsWeaklyConnected reports whether the graph is a single weak component.
// The empty graph is not connected.
func (g *Graph) IsWeaklyConnected() bool {
	return len(g.order) > 0 && g.WeakComponents() == 1
}

// Cycles returns every strongly connected component with more than one
// member. Each cycle starts at its earliest member in input order and lists
// the remaining members in the order reached by following prerequisite
// edges. Cycles are ordered by their first member.
func (g *Graph) Cycles() [][]string {
	idx := g.index()
	var out [][]string
	for _, scc := range g.stronglyConnected() {
		if len(scc) < 2 {
			continue
		}
		out = append(out, g.cycleOrder(scc, idx))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return idx[out[i][0]] < idx[out[j][0]]
	})
	return out
}

// stronglyConnected runs Tarjan's algorithm with an explicit call stack so
// that long dependency chains cannot overflow the goroutine stack.
func (g *Graph) stronglyConnected() [][]string {
	type frame struct {
		node  string
		edge  int
		child string
		phase int // 0 enter, 1 scan edges, 2 after child, 3 finish
	}

	counter := 0
	index := make(map[string]int, len(g.order))
	low := make(map[string]int, len(g.order))
	onStack := make(map[string]bool, len(g.order))
	var stack []string
	var sccs [][]string

	for _, root := range g.order {
		if _, seen := index[root]; seen {
			continue
		}
		calls := []frame{{node: root}}
		for len(calls) > 0 {
			f := &calls[len(calls)-1]
			switch f.phase {
			case 0:
				index[f.node] = counter
				low[f.node] = counter
				counter++
				stack = append(stack, f.node)
				onStack[f.node] = true
				f.phase = 1
			case 1:
				pushed := false
				for f.edge < len(g.succ[f.node]) {
					next := g.succ[f.node][f.edge]
					f.edge++
					if _, seen := index[next]; !seen {
						f.child = next
						f.phase = 2
						calls = append(calls, frame{node: next})
						pushed = true
						break
					}
					if onStack[next] && index[next] < low[f.node] {
						low[f.node] = index[next]
					}
				}
				if !pushed {
					f.phase = 3
				}
			case 2:
				if low[f.child] < low[f.node] {
					low[f.node] = low[f.child]
				}
				f.phase = 1
			case 3:
				if low[f.node] == index[f.node] {
					var scc []string
					for {
						w := stack[len(stack)-1]
						stack = stack[:len(stack)-1]
						onStack[w] = false
						scc = append(scc, w)
						if w == f.node {
							break
						}
					}
					sccs = append(sccs, scc)
				}
				calls = calls[:len(calls)-1]
			}
		}
	}
	return sccs
}

// cycleOrder walks successor edges inside the component starting from its
// earliest member, preferring the earliest unvisited successor at each step.
// Members the walk cannot reach are appended in input order.
func (g *Graph) cycleOrder(members []string, idx map[string]int) []string {
	in := make(map[string]bool, len(members))
	for _, m := range members {
		in[m] = true
	}
	sorted := append([]string(nil), members...)
	sort.Slice(sorted, func(i, j int) bool { return idx[sorted[i]] < idx[sorted[j]] })

	visited := map[string]bool{sorted[0]: true}
	order := []string{sorted[0]}
	cur := sorted[0]
	for {
		next := ""
		for _, s := range g.succ[cur] {
			if in[s] && !visited[s] && (next == "" || idx[s] < idx[next]) {
				next = s
			}
		}
		if next == "" {
			break
		}
		visited[next] = true
		order = append(order, next)
		cur = next
	}
	for _, m := range sorted {
		if !visited[m] {
			order = append(order, m)
		}
	}
	return order
}
