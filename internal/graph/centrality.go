package graph

import "math"

const (
	pageRankAlpha     = 0.85
	pageRankMaxIter   = 100
	pageRankTolerance = 1.0e-6
)

// Density returns edges divided by the maximum possible number of directed
// edges. Graphs with fewer than two nodes have density 0.
func (g *Graph) Density() float64 {
	n := len(g.order)
	if n < 2 {
		return 0
	}
	return float64(len(g.edges)) / float64(n*(n-1))
}

// Betweenness computes shortest-path betweenness centrality for every node
// using Brandes' algorithm on the unweighted directed graph. Values are
// normalized by 1/((n-1)(n-2)) when n > 2.
func (g *Graph) Betweenness() map[string]float64 {
	n := len(g.order)
	out := make(map[string]float64, n)
	if n == 0 {
		return out
	}

	idx := g.index()
	adj := make([][]int, n)
	for i, id := range g.order {
		for _, s := range g.succ[id] {
			adj[i] = append(adj[i], idx[s])
		}
	}

	cb := make([]float64, n)
	sigma := make([]float64, n)
	dist := make([]int, n)
	delta := make([]float64, n)
	preds := make([][]int, n)

	for s := 0; s < n; s++ {
		for i := range n {
			sigma[i] = 0
			dist[i] = -1
			delta[i] = 0
			preds[i] = preds[i][:0]
		}
		sigma[s] = 1
		dist[s] = 0

		stack := make([]int, 0, n)
		queue := []int{s}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range adj[v] {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		for len(stack) > 0 {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, v := range preds[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != s {
				cb[w] += delta[w]
			}
		}
	}

	scale := 1.0
	if n > 2 {
		scale = 1.0 / float64((n-1)*(n-2))
	}
	for i, id := range g.order {
		out[id] = cb[i] * scale
	}
	return out
}

// PageRank computes PageRank by power iteration with damping alpha. Mass on
// nodes without dependents is redistributed uniformly. The boolean is false
// when the iteration does not converge.
func (g *Graph) PageRank(alpha float64) (map[string]float64, bool) {
	n := len(g.order)
	if n == 0 {
		return map[string]float64{}, true
	}

	idx := g.index()
	uniform := 1.0 / float64(n)
	x := make([]float64, n)
	for i := range x {
		x[i] = uniform
	}

	for range pageRankMaxIter {
		last := x
		x = make([]float64, n)

		dangling := 0.0
		for i, id := range g.order {
			if len(g.succ[id]) == 0 {
				dangling += last[i]
			}
		}
		dangling *= alpha

		for i, id := range g.order {
			out := g.succ[id]
			if len(out) == 0 {
				continue
			}
			share := alpha * last[i] / float64(len(out))
			for _, s := range out {
				x[idx[s]] += share
			}
		}

		diff := 0.0
		for i := range x {
			x[i] += dangling*uniform + (1-alpha)*uniform
			diff += math.Abs(x[i] - last[i])
		}
		if diff < float64(n)*pageRankTolerance {
			ranks := make(map[string]float64, n)
			for i, id := range g.order {
				ranks[id] = x[i]
			}
			return ranks, true
		}
	}
	return nil, false
}

// neighbors returns the undirected neighbourhood of id, excluding id.
func (g *Graph) neighbors(id string) map[string]bool {
	nb := make(map[string]bool, len(g.succ[id])+len(g.pred[id]))
	for _, s := range g.succ[id] {
		nb[s] = true
	}
	for _, p := range g.pred[id] {
		nb[p] = true
	}
	delete(nb, id)
	return nb
}

// AverageClustering returns the mean local clustering coefficient of the
// undirected projection. Nodes with fewer than two neighbours count as 0.
func (g *Graph) AverageClustering() float64 {
	n := len(g.order)
	if n == 0 {
		return 0
	}

	nbs := make(map[string]map[string]bool, n)
	for _, id := range g.order {
		nbs[id] = g.neighbors(id)
	}

	total := 0.0
	for _, id := range g.order {
		nb := nbs[id]
		deg := len(nb)
		if deg < 2 {
			continue
		}
		links := 0
		for u := range nb {
			for v := range nbs[u] {
				if v != id && nb[v] {
					links++
				}
			}
		}
		// each undirected link was counted from both ends
		total += float64(links) / float64(deg*(deg-1))
	}
	return total / float64(n)
}
