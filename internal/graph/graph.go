package graph

import (
	"slices"
	"sync"
)

type Edge struct {
	From string
	To   string
}

// Graph is a directed acyclic graph of service identities. Keys are interned
// into an arena and adjacency is kept as index lists, so the graph never holds
// references to the services themselves.
type Graph struct {
	mu    sync.RWMutex
	index map[string]int
	keys  []string
	out   [][]int
	in    [][]int
}

func New() *Graph {
	return &Graph{
		index: make(map[string]int),
	}
}

func (g *Graph) intern(key string) int {
	if id, ok := g.index[key]; ok {
		return id
	}

	id := len(g.keys)
	g.index[key] = id
	g.keys = append(g.keys, key)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return id
}

// AddEdge records that from depends on to. The edge is rejected with a
// *CycleError when to already depends on from, directly or transitively.
func (g *Graph) AddEdge(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if from == to {
		return &CycleError{Path: []string{from, to}}
	}

	f := g.intern(from)
	t := g.intern(to)

	if g.hasEdgeUnsafe(f, t) {
		return nil
	}

	if path := g.pathUnsafe(t, f); path != nil {
		cycle := make([]string, 0, len(path)+1)
		cycle = append(cycle, from)
		for _, id := range path {
			cycle = append(cycle, g.keys[id])
		}
		return &CycleError{Path: cycle}
	}

	g.out[f] = append(g.out[f], t)
	g.in[t] = append(g.in[t], f)
	return nil
}

func (g *Graph) hasEdgeUnsafe(f, t int) bool {
	for _, id := range g.out[f] {
		if id == t {
			return true
		}
	}
	return false
}

func (g *Graph) Dependencies(key string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, exists := g.index[key]
	if !exists {
		return nil
	}
	return g.namesUnsafe(g.out[id])
}

func (g *Graph) Dependents(key string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, exists := g.index[key]
	if !exists {
		return nil
	}
	return g.namesUnsafe(g.in[id])
}

func (g *Graph) namesUnsafe(ids []int) []string {
	if len(ids) == 0 {
		return nil
	}

	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = g.keys[id]
	}
	return names
}

// Nodes returns every known key in insertion order.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]string, len(g.keys))
	copy(nodes, g.keys)
	return nodes
}

func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var edges []Edge
	for f, deps := range g.out {
		for _, t := range deps {
			edges = append(edges, Edge{From: g.keys[f], To: g.keys[t]})
		}
	}
	return edges
}

func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.keys)
}

func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	clone := &Graph{
		index: make(map[string]int, len(g.index)),
		keys:  make([]string, len(g.keys)),
		out:   make([][]int, len(g.out)),
		in:    make([][]int, len(g.in)),
	}

	for key, id := range g.index {
		clone.index[key] = id
	}
	copy(clone.keys, g.keys)
	for i := range g.out {
		clone.out[i] = append([]int(nil), g.out[i]...)
		clone.in[i] = append([]int(nil), g.in[i]...)
	}
	return clone
}

// AddEdges records every from -> to edge or none of them.
func (g *Graph) AddEdges(from string, to []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	f := g.intern(from)
	if err := g.checkEdgesUnsafe(f, to); err != nil {
		return err
	}
	g.linkUnsafe(f, to)
	return nil
}

// ReplaceOutEdges swaps every dependency edge of from for edges to the keys
// in to. When one of the new edges would close a cycle the graph is left as
// it was.
func (g *Graph) ReplaceOutEdges(from string, to []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	f := g.intern(from)
	if err := g.checkEdgesUnsafe(f, to); err != nil {
		return err
	}

	for _, t := range g.out[f] {
		g.in[t] = slices.DeleteFunc(g.in[t], func(id int) bool { return id == f })
	}
	g.out[f] = nil
	g.linkUnsafe(f, to)
	return nil
}

// checkEdgesUnsafe looks for a path from any of to back to f. The search stops
// on reaching f, so f's current out edges never take part in it.
func (g *Graph) checkEdgesUnsafe(f int, to []string) error {
	from := g.keys[f]
	for _, key := range to {
		if key == from {
			return &CycleError{Path: []string{from, key}}
		}
		t, ok := g.index[key]
		if !ok {
			continue
		}
		if path := g.pathUnsafe(t, f); path != nil {
			cycle := []string{from}
			for _, id := range path {
				cycle = append(cycle, g.keys[id])
			}
			return &CycleError{Path: cycle}
		}
	}
	return nil
}

func (g *Graph) linkUnsafe(f int, to []string) {
	for _, key := range to {
		t := g.intern(key)
		if !g.hasEdgeUnsafe(f, t) {
			g.out[f] = append(g.out[f], t)
			g.in[t] = append(g.in[t], f)
		}
	}
}
