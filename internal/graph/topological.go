package graph

import (
	"iter"
	"slices"
)

// TopologicalOrder yields every key after all keys it depends on. The order is
// computed when iteration starts, so the sequence can be ranged over again to
// observe edges added in the meantime. Unrelated keys keep insertion order.
func (g *Graph) TopologicalOrder() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, key := range g.sorted() {
			if !yield(key) {
				return
			}
		}
	}
}

func (g *Graph) ReverseTopologicalOrder() iter.Seq[string] {
	return func(yield func(string) bool) {
		sorted := g.sorted()
		for i := len(sorted) - 1; i >= 0; i-- {
			if !yield(sorted[i]) {
				return
			}
		}
	}
}

func (g *Graph) sorted() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make([]bool, len(g.keys))
	order := make([]string, 0, len(g.keys))

	var visit func(id int)
	visit = func(id int) {
		visited[id] = true
		for _, dep := range g.out[id] {
			if !visited[dep] {
				visit(dep)
			}
		}
		order = append(order, g.keys[id])
	}

	for id := range g.keys {
		if !visited[id] {
			visit(id)
		}
	}

	return order
}

// ResolutionOrder returns target and its transitive dependencies, dependencies
// first.
func (g *Graph) ResolutionOrder(target string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	start, exists := g.index[target]
	if !exists {
		return []string{target}
	}

	visited := make(map[int]bool)
	var order []string

	var visit func(id int)
	visit = func(id int) {
		visited[id] = true
		for _, dep := range g.out[id] {
			if !visited[dep] {
				visit(dep)
			}
		}
		order = append(order, g.keys[id])
	}
	visit(start)

	return order
}

type ParallelGroup struct {
	Level int
	Nodes []string
}

// Levels groups keys by dependency depth: level 0 has no dependencies and
// every key sits one level above its deepest dependency.
func (g *Graph) Levels() []ParallelGroup {
	g.mu.RLock()
	defer g.mu.RUnlock()

	levels := make([]int, len(g.keys))
	for i := range levels {
		levels[i] = -1
	}

	var level func(id int) int
	level = func(id int) int {
		if levels[id] >= 0 {
			return levels[id]
		}

		maxDep := -1
		for _, dep := range g.out[id] {
			maxDep = max(maxDep, level(dep))
		}
		levels[id] = maxDep + 1
		return levels[id]
	}

	maxLevel := -1
	for id := range g.keys {
		maxLevel = max(maxLevel, level(id))
	}

	groups := make([]ParallelGroup, maxLevel+1)
	for i := range groups {
		groups[i].Level = i
	}
	for id, lvl := range levels {
		groups[lvl].Nodes = append(groups[lvl].Nodes, g.keys[id])
	}

	return groups
}

// ReverseLevels is Levels with the deepest dependents first, the order in
// which groups can be torn down.
func (g *Graph) ReverseLevels() []ParallelGroup {
	groups := g.Levels()
	slices.Reverse(groups)
	return groups
}
