package dag

import (
	"sort"
)

// Requirement pulls another action into a plan.
type Requirement struct {
	Name string

	// Unless, when set and reporting true at planning time, drops the
	// requirement. It does not affect ordering when both actions are
	// planned anyway.
	Unless func() bool
}

// Action is a node of the graph.
//
// After lists actions that must run first when both are planned. Requires
// lists actions that are added to the plan and also run first.
type Action struct {
	Name     string
	After    []string
	Requires []Requirement
}

// Edge is an ordering relation: To runs after From.
type Edge struct {
	From string
	To   string
}

type edgeIndex struct {
	from int
	to   int
}

// ActionGraph is an immutable, validated DAG of actions. Declaration order
// is the canonical order and breaks ties between independent actions.
type ActionGraph struct {
	byName  map[string]int
	actions []Action

	edges []edgeIndex // sorted

	outgoing [][]int // by canonical index, sorted ascending
	incoming [][]int // by canonical index, sorted ascending
	indeg    []int   // by canonical index
}

// NewActionGraph builds and validates an ActionGraph.
//
// Validation rejects:
//   - empty or duplicate action names
//   - references to unknown actions
//   - duplicate edges, including an action named in both After and Requires
//   - self-loops
//   - any cycle (direct or indirect)
func NewActionGraph(actions []Action) (*ActionGraph, error) {
	if len(actions) == 0 {
		return nil, invalidAction("", "no actions declared")
	}

	byName := make(map[string]int, len(actions))
	for i, a := range actions {
		if a.Name == "" {
			return nil, invalidAction("", "action %d has no name", i)
		}
		if _, exists := byName[a.Name]; exists {
			return nil, invalidAction(a.Name, "declared twice")
		}
		byName[a.Name] = i
	}

	var mapped []edgeIndex
	seen := make(map[edgeIndex]struct{})
	addEdge := func(from, to string) error {
		fi, ok := byName[from]
		if !ok {
			return invalidAction(to, "references unknown action %q", from)
		}
		if from == to {
			return invalidAction(to, "depends on itself")
		}
		pair := edgeIndex{from: fi, to: byName[to]}
		if _, exists := seen[pair]; exists {
			return invalidAction(to, "names %q more than once", from)
		}
		seen[pair] = struct{}{}
		mapped = append(mapped, pair)
		return nil
	}
	for _, a := range actions {
		for _, dep := range a.After {
			if err := addEdge(dep, a.Name); err != nil {
				return nil, err
			}
		}
		for _, req := range a.Requires {
			if err := addEdge(req.Name, a.Name); err != nil {
				return nil, err
			}
		}
	}

	sort.Slice(mapped, func(i, j int) bool {
		a, b := mapped[i], mapped[j]
		if a.from != b.from {
			return a.from < b.from
		}
		return a.to < b.to
	})

	n := len(actions)
	outgoing := make([][]int, n)
	incoming := make([][]int, n)
	indeg := make([]int, n)
	for _, e := range mapped {
		outgoing[e.from] = append(outgoing[e.from], e.to)
		incoming[e.to] = append(incoming[e.to], e.from)
		indeg[e.to]++
	}

	cp := make([]Action, n)
	copy(cp, actions)
	g := &ActionGraph{
		byName:   byName,
		actions:  cp,
		edges:    mapped,
		outgoing: outgoing,
		incoming: incoming,
		indeg:    indeg,
	}
	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

// Names returns the action names in canonical order.
func (g *ActionGraph) Names() []string {
	out := make([]string, len(g.actions))
	for i, a := range g.actions {
		out[i] = a.Name
	}
	return out
}

// Has reports whether name is a declared action.
func (g *ActionGraph) Has(name string) bool {
	_, ok := g.byName[name]
	return ok
}

// Edges returns the ordering edges as name pairs in canonical order.
func (g *ActionGraph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, Edge{From: g.actions[e.from].Name, To: g.actions[e.to].Name})
	}
	return out
}

// Plan returns the ordered list of actions to execute for requested.
//
// Requested names are deduplicated, closed over their requirements and
// ordered topologically; independent actions keep declaration order. An
// undeclared name fails with ErrUnknownAction.
func (g *ActionGraph) Plan(requested []string) ([]string, error) {
	included := make([]bool, len(g.actions))
	var queue []int
	for _, name := range requested {
		idx, ok := g.byName[name]
		if !ok {
			return nil, unknownAction(name)
		}
		if !included[idx] {
			included[idx] = true
			queue = append(queue, idx)
		}
	}

	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		for _, req := range g.actions[idx].Requires {
			if req.Unless != nil && req.Unless() {
				continue
			}
			r := g.byName[req.Name]
			if !included[r] {
				included[r] = true
				queue = append(queue, r)
			}
		}
	}

	order := g.topoOrderIndices(included)
	out := make([]string, len(order))
	for i, idx := range order {
		out[i] = g.actions[idx].Name
	}
	return out, nil
}
