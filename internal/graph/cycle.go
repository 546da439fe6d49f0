package graph

import (
	"errors"
	"strings"
)

var ErrCycleDetected = errors.New("cycle detected in graph")

// CycleError carries the dependency path that would close a loop. The first
// and last entries are the same key.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return ErrCycleDetected.Error() + ": " + strings.Join(e.Path, " -> ")
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// pathUnsafe returns the shortest dependency path from -> ... -> to, both
// ends included, or nil when to is unreachable.
func (g *Graph) pathUnsafe(from, to int) []int {
	if from == to {
		return []int{from}
	}

	parent := make(map[int]int, len(g.keys))
	parent[from] = from
	queue := []int{from}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		for _, dep := range g.out[node] {
			if _, seen := parent[dep]; seen {
				continue
			}
			parent[dep] = node

			if dep == to {
				var path []int
				for cur := to; cur != from; cur = parent[cur] {
					path = append(path, cur)
				}
				path = append(path, from)

				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path
			}

			queue = append(queue, dep)
		}
	}

	return nil
}
