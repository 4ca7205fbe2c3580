// Package dag orders pipeline actions.
//
// It is split into:
//   - Immutable graph definition (ActionGraph): actions, ordering edges and
//     requirement edges, validated once on construction
//   - Per-invocation planning (Plan): the requested actions closed over
//     their requirements and ordered deterministically
//   - Mutable execution state (ExecutionState) driven by the serial Executor
package dag
