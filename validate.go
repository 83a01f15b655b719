package forge

import (
	"fmt"

	"github.com/opencontainers/go-digest"
)

// ValidateGraph walks the graph reachable from root and checks the
// invariants spec.md §3 requires before any build executes:
//
//   - no Build.Errors anywhere in the graph (else [ManifestError]),
//   - every Build.ID parses as a content digest (else [GraphError]),
//   - the graph is a DAG; Builds with equal ID are visited once and are
//     assumed byte-identical by construction (the duplicate-ID/no-cycle
//     check here is a cycle-safe walk, not a structural equality check —
//     see spec.md §3's invariant note),
//   - no unresolved (nil) dependency reference.
//
// This is the single validation boundary both back-ends call before doing
// any I/O, mirroring the teacher's validateConfigAndEnv entry point
// (sandbox/validate.go): manifest errors from every reachable Build are
// collected and reported once. The first structural problem (bad id, cycle,
// nil reference) stops the walk and is returned on its own.
func ValidateGraph(root *Build) error {
	if root == nil {
		return &GraphError{Message: "root build is nil"}
	}

	manifestErrs := map[string][]string{}
	visiting := map[string]bool{} // on current DFS stack: cycle detection
	visited := map[string]bool{}  // fully processed

	var graphErr error

	var walk func(b *Build)

	walk = func(b *Build) {
		if graphErr != nil {
			return
		}

		if b == nil {
			graphErr = &GraphError{Message: "nil dependency reference"}
			return
		}

		id := string(b.ID)

		if visited[id] {
			return
		}

		if err := digest.Digest(b.ID).Validate(); err != nil {
			graphErr = &GraphError{Message: fmt.Sprintf("invalid build id %q: %s", b.ID, err), BuildID: id}
			return
		}

		if visiting[id] {
			graphErr = &GraphError{Message: "dependency cycle detected", BuildID: id}
			return
		}

		visiting[id] = true

		if len(b.Errors) > 0 {
			manifestErrs[id] = append(manifestErrs[id], b.Errors...)
		}

		for _, dep := range b.Dependencies {
			walk(dep)

			if graphErr != nil {
				return
			}
		}

		visiting[id] = false
		visited[id] = true
	}

	walk(root)

	if graphErr != nil {
		return graphErr
	}

	if len(manifestErrs) > 0 {
		return &ManifestError{Builds: manifestErrs}
	}

	return nil
}
