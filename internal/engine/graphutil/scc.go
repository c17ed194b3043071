// Package graphutil implements the pure graph algorithms of the build
// engine: strongly-connected-component decomposition and topological
// layering. It performs no I/O.
package graphutil

// StronglyConnectedComponents decomposes the directed graph given by
// vertices and edges into its strongly connected components. Every
// vertex appears in exactly one returned component; vertices with no
// edges form singleton components and self-edges are ignored. Edges to
// vertices outside the vertex set are skipped.
//
// The decomposition is Tarjan's algorithm driven by an explicit frame
// stack so that arbitrarily deep graphs cannot exhaust the call stack.
func StronglyConnectedComponents(vertices []string, edges map[string][]string) [][]string {
	known := make(map[string]bool, len(vertices))
	for _, v := range vertices {
		known[v] = true
	}

	index := make(map[string]int, len(vertices))
	lowlink := make(map[string]int, len(vertices))
	onStack := make(map[string]bool, len(vertices))
	var stack []string
	var components [][]string
	next := 0

	type frame struct {
		vertex string
		edge   int
	}

	for _, root := range vertices {
		if _, seen := index[root]; seen {
			continue
		}

		frames := []frame{{vertex: root}}
		index[root] = next
		lowlink[root] = next
		next++
		stack = append(stack, root)
		onStack[root] = true

		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			v := f.vertex
			advanced := false

			for f.edge < len(edges[v]) {
				w := edges[v][f.edge]
				f.edge++
				if w == v || !known[w] {
					continue
				}
				if _, seen := index[w]; !seen {
					index[w] = next
					lowlink[w] = next
					next++
					stack = append(stack, w)
					onStack[w] = true
					frames = append(frames, frame{vertex: w})
					advanced = true
					break
				}
				if onStack[w] && index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
			if advanced {
				continue
			}

			// All edges of v explored; pop the frame.
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := frames[len(frames)-1].vertex
				if lowlink[v] < lowlink[parent] {
					lowlink[parent] = lowlink[v]
				}
			}

			if lowlink[v] == index[v] {
				var comp []string
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					comp = append(comp, w)
					if w == v {
						break
					}
				}
				components = append(components, comp)
			}
		}
	}

	return components
}
