package workflow

import (
	"sort"
	"strings"
)

// Graph is a validated dependency graph over workflow targets.
//
// Edges follow file flow: a target depends on the producer of each of its
// declared inputs. Inputs with no producer are external files that must exist
// on disk before the consuming target may run.
type Graph struct {
	targets   map[string]Target
	producers map[string]string   // output path -> target name
	deps      map[string][]string // target name -> producing target names, sorted
}

// NewGraph validates the workflow and builds its dependency graph.
//
// Rejected declarations:
//   - empty or duplicate target names
//   - missing output or command
//   - two targets claiming the same output
//   - a target consuming its own output
//   - any dependency cycle
func NewGraph(w Workflow) (*Graph, error) {
	if len(w.Targets) == 0 {
		return nil, invalidf("no targets")
	}

	targets := make(map[string]Target, len(w.Targets))
	producers := make(map[string]string, len(w.Targets))
	for _, target := range w.Targets {
		if target.Name == "" {
			return nil, invalidf("target name is required")
		}
		if _, dup := targets[target.Name]; dup {
			return nil, invalidf("duplicate target %q", target.Name)
		}
		if target.Output == "" {
			return nil, invalidf("target %q has no output", target.Name)
		}
		if target.Command == "" {
			return nil, invalidf("target %q has no command", target.Name)
		}
		if prior, claimed := producers[target.Output]; claimed {
			return nil, invalidf("targets %q and %q both produce %s", prior, target.Name, target.Output)
		}
		targets[target.Name] = target
		producers[target.Output] = target.Name
	}

	deps := make(map[string][]string, len(targets))
	for name, target := range targets {
		seen := map[string]struct{}{}
		for _, input := range target.Inputs {
			if input == target.Output {
				return nil, invalidf("target %q consumes its own output %s", name, input)
			}
			producer, ok := producers[input]
			if !ok {
				continue // external input, checked at execution time
			}
			if _, dup := seen[producer]; dup {
				continue
			}
			seen[producer] = struct{}{}
			deps[name] = append(deps[name], producer)
		}
		sort.Strings(deps[name])
	}

	g := &Graph{targets: targets, producers: producers, deps: deps}
	if err := g.checkCycles(); err != nil {
		return nil, err
	}
	return g, nil
}

// Target returns the named target.
func (g *Graph) Target(name string) (Target, bool) {
	t, ok := g.targets[name]
	return t, ok
}

// Names returns every target name sorted.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.targets))
	for name := range g.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Producer returns the target producing the given output path.
func (g *Graph) Producer(output string) (string, bool) {
	name, ok := g.producers[output]
	return name, ok
}

// Plan returns the targets required to build the requested target, in
// dependency order (dependencies first), ending with the target itself.
func (g *Graph) Plan(name string) ([]string, error) {
	if _, ok := g.targets[name]; !ok {
		return nil, invalidf("unknown target %q", name)
	}

	var order []string
	done := map[string]struct{}{}
	var visit func(current string)
	visit = func(current string) {
		if _, ok := done[current]; ok {
			return
		}
		done[current] = struct{}{}
		for _, dep := range g.deps[current] {
			visit(dep)
		}
		order = append(order, current)
	}
	visit(name)
	return order, nil
}

func (g *Graph) checkCycles() error {
	const (
		visiting = 1
		finished = 2
	)
	state := map[string]int{}
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			start := 0
			for i, n := range path {
				if n == name {
					start = i
					break
				}
			}
			cycle := append(append([]string(nil), path[start:]...), name)
			return invalidf("dependency cycle: %s", strings.Join(cycle, " -> "))
		case finished:
			return nil
		}
		state[name] = visiting
		path = append(path, name)
		for _, dep := range g.deps[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = finished
		return nil
	}

	for _, name := range g.Names() {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}
