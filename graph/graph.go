// Package graph implements the two DAG traversals forge needs over a build
// graph (spec.md §4.3, component C3): a BFS from the root, used where
// ordering is not load-bearing, and a cycle-safe post-order DFS, used to
// drive build execution and to order environment-composition groups.
//
// Both traversals deduplicate by [forge.Build.ID]: a Build reachable via
// multiple paths is visited exactly once.
package graph

import "github.com/forgebuild/forge"

// BFS returns every Build reachable from root, in breadth-first order,
// visited once per ID (root included).
func BFS(root *forge.Build) []*forge.Build {
	if root == nil {
		return nil
	}

	var order []*forge.Build

	seen := map[string]bool{}
	queue := []*forge.Build{root}

	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]

		id := string(b.ID)
		if seen[id] {
			continue
		}

		seen[id] = true
		order = append(order, b)
		queue = append(queue, b.Dependencies...)
	}

	return order
}

// CollectTransitiveDependencies returns the BFS visitation of b excluding b
// itself (spec.md §4.3).
func CollectTransitiveDependencies(b *forge.Build) []*forge.Build {
	all := BFS(b)

	out := make([]*forge.Build, 0, len(all))

	for _, dep := range all {
		if dep.ID != b.ID {
			out = append(out, dep)
		}
	}

	return out
}

// PostOrderDFS returns every Build reachable from root in post-order
// (every dependency of a node before the node itself), visited once per
// ID (root included, last).
func PostOrderDFS(root *forge.Build) []*forge.Build {
	if root == nil {
		return nil
	}

	var order []*forge.Build

	seen := map[string]bool{}

	var walk func(b *forge.Build)

	walk = func(b *forge.Build) {
		id := string(b.ID)
		if seen[id] {
			return
		}

		seen[id] = true

		for _, dep := range b.Dependencies {
			walk(dep)
		}

		order = append(order, b)
	}

	walk(root)

	return order
}

// DepsPostOrder returns the post-order DFS of b's transitive dependencies,
// excluding b itself (deepest dependency first). This is the order spec.md
// §4.2 group 3 and §4.4 step 6's findlib path both require.
func DepsPostOrder(b *forge.Build) []*forge.Build {
	all := PostOrderDFS(b)

	out := make([]*forge.Build, 0, len(all))

	for _, dep := range all {
		if dep.ID != b.ID {
			out = append(out, dep)
		}
	}

	return out
}
