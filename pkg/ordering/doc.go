// Package ordering computes a crossing-minimized vertical order of groups for
// every layer of a critical graph.
//
// # Pipeline
//
//  1. [NewInstance] picks the layers (every edge's first and last valid
//     frame), creates one vertex per (group, layer) the group is present
//     at, and builds a containment tree per layer: one internal node per
//     critical edge spanning the layer, whose children are the vertices
//     whose group lies inside the edge's component.
//  2. [BuildModel] turns the instance into a binary quadratic program with
//     one variable above(a,b,r) per pair of coexisting groups a < b per
//     layer. above(b,a,r) is the complement and is never materialized.
//     Transitivity and tree-consistency constraints make every feasible
//     assignment a total order that keeps tree siblings contiguous.
//  3. [WarmStart] computes a good feasible order greedily; [Optimize] hands
//     the model and the warm start to a [solver.Solver].
//  4. [ExtractOrders] turns the pairwise relation back into one total order
//     per layer by topological sort.
//
// # Objective
//
// For consecutive layers r, r' and every pair present in both, the model
// pays w·(x + x' − 2·x·x'), which is w when the pair's relative order flips
// and 0 otherwise. The weight depends on the pair (see [Weights]): cheap
// when both groups are nested under one parent on both layers, cheap when
// either group changes its containing edge between the layers, and
// expensive otherwise.
//
// # Trivial Instances
//
// With at most one selected group, or at most one group per layer, no
// model is built and each layer's order is returned as is.
package ordering
