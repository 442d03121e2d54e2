// Package pkg provides the core libraries for trajectory grouping.
//
// # Overview
//
// Trajgroups takes the positions of moving entities over discrete frames and
// answers two questions: which entities travel together, and how can those
// groups be drawn as horizontal bands with as few crossings as possible.
// The pkg directory is organized into three areas:
//
//  1. Domain logic (proximity events, critical graph, groups, ordering)
//  2. Infrastructure (caching, result storage, sessions, configuration)
//  3. Entry points (pipeline orchestration, HTTP API)
//
// # Architecture
//
// The typical data flow:
//
//	CSV dataset (frame,id,x,y)
//	         ↓
//	    [events] package (connect/disconnect events at an epsilon)
//	         ↓
//	    [reeb] package (critical graph of the proximity components)
//	         ↓
//	    [groups] package (maximal groups, selection policies)
//	         ↓
//	    [ordering] package (layered crossing-minimized orders)
//	         ↓
//	    orderings.txt, groups.txt, layers.txt
//
// # Quick Start
//
//	ds, _ := dataset.LoadFile("walk.csv")
//	s, _ := events.Generate(ctx, ds, 1.5)
//	g, _, _ := reeb.Build(s, reeb.Options{Compact: true})
//	st, _ := groups.Extract(g)
//	selected := groups.GloballyPersistent{}.Select(g, st)
//	res, _ := ordering.Optimize(ctx, g, selected, ordering.Options{})
//
// Or, with caching and logging, through the runner:
//
//	runner := pipeline.NewRunner(cache, nil, nil, logger)
//	res, _ := runner.Run(ctx, ds, pipeline.Options{Epsilon: 1.5})
//
// # Main Packages
//
// ## Domain Logic
//
// [dataset] - CSV loading and the input contract (gapless ids, complete
// frames).
//
// [events] - Exact connect/disconnect times from linear interpolation
// between frames, sorted with disconnects first on ties.
//
// [proximity] - Incremental component tracking over the proximity graph.
//
// [reeb] - The critical graph: start, merge, split and end vertices joined
// by edges that carry a component. Compaction removes zero-duration edges.
//
// [groups] - Maximal group extraction and the selection policies
// (persistent, all-intervals, maximal).
//
// [ordering] - Layered group ordering: the instance, its binary model,
// warm start, solving and crossing counts. [solver] holds the reference
// branch-and-bound and [perm] the permutation helpers.
//
// [render/dot] - Graphviz export of critical graphs for inspection.
//
// ## Infrastructure
//
// [cache] - Byte caches for critical graphs (file, Redis, null).
//
// [store] - Result stores for the three result artifacts (cache, file,
// MongoDB).
//
// [session] - Explicit per-process state: datasets and run records.
//
// [config] - TOML configuration with TRAJGROUPS_* overrides.
//
// [observability] - Pipeline, cache and HTTP hooks with a Prometheus
// implementation.
//
// [errors] - Error codes shared by every package.
//
// ## Entry Points
//
// [pipeline] - Build → select → order with caching, used by the CLI and the
// API. Ensures consistent behavior across all entry points.
//
// [api] - HTTP API over a session.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/ordering/...           # Specific package
//	go test -run Example ./pkg/...       # Examples only
//
// Redis and MongoDB backends are tested against live servers when
// TRAJGROUPS_TEST_REDIS or TRAJGROUPS_TEST_MONGO is set.
//
// [dataset]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/dataset
// [events]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/events
// [proximity]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/proximity
// [reeb]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/reeb
// [groups]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/groups
// [ordering]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/ordering
// [solver]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/solver
// [perm]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/perm
// [render/dot]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/render/dot
// [cache]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/cache
// [store]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/store
// [session]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/session
// [config]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/config
// [observability]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/errors
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/pipeline
// [api]: https://pkg.go.dev/github.com/matzehuels/trajgroups/pkg/api
package pkg
