// Package prereq implements the Prerequisite Graph: a runtime-mutable
// directed acyclic relation over core loops. Unlike a compiled-in
// curriculum graph, edges are added one at a time and each addition is
// checked against the existing graph before it is accepted, so the
// relation never needs a whole-graph cycle sweep after the fact.
package prereq

import (
	"context"
	"fmt"

	"github.com/studymesh/ale/internal/aleerr"
	"github.com/studymesh/ale/internal/model"
	"github.com/studymesh/ale/internal/store"
)

// Graph is an in-memory adjacency view over the persisted prerequisite
// edge set, kept current by routing every mutation through AddEdge.
type Graph struct {
	repo store.PrereqRepo

	prereqsOf    map[string][]string // dependent -> []prereq
	dependentsOf map[string][]string // prereq -> []dependent
}

// Load builds a Graph by reading every edge currently in the store.
func Load(ctx context.Context, repo store.PrereqRepo) (*Graph, error) {
	edges, err := repo.ListEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list prerequisite edges: %w", err)
	}

	g := &Graph{
		repo:         repo,
		prereqsOf:    make(map[string][]string),
		dependentsOf: make(map[string][]string),
	}
	for _, e := range edges {
		g.index(e.PrereqCoreLoopID, e.DependentCoreLoopID)
	}
	return g, nil
}

func (g *Graph) index(prereq, dependent string) {
	g.prereqsOf[dependent] = append(g.prereqsOf[dependent], prereq)
	g.dependentsOf[prereq] = append(g.dependentsOf[prereq], dependent)
}

// AddEdge adds prereq -> dependent to the graph, rejecting it with
// WouldCreateCycle if dependent can already (transitively) reach prereq
// — since adding the edge the other way around would then close a loop.
func (g *Graph) AddEdge(ctx context.Context, prereqCoreLoopID, dependentCoreLoopID string) error {
	if prereqCoreLoopID == dependentCoreLoopID {
		return &aleerr.WouldCreateCycle{PrereqCoreLoopID: prereqCoreLoopID, DependentCoreLoopID: dependentCoreLoopID}
	}

	if g.reaches(dependentCoreLoopID, prereqCoreLoopID) {
		return &aleerr.WouldCreateCycle{PrereqCoreLoopID: prereqCoreLoopID, DependentCoreLoopID: dependentCoreLoopID}
	}

	edge := model.PrerequisiteEdge{PrereqCoreLoopID: prereqCoreLoopID, DependentCoreLoopID: dependentCoreLoopID}
	if err := g.repo.AddEdge(ctx, edge); err != nil {
		return fmt.Errorf("persist edge: %w", err)
	}
	g.index(prereqCoreLoopID, dependentCoreLoopID)
	return nil
}

// reaches reports whether a BFS walk forward from `from` along
// dependentsOf edges can reach `to` — i.e. whether `from` is already a
// (possibly transitive) prerequisite of `to`.
func (g *Graph) reaches(from, to string) bool {
	if from == to {
		return true
	}
	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.dependentsOf[cur] {
			if next == to {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// PrereqsOf returns every transitive prerequisite of coreLoopID, via BFS
// over direct prereqsOf edges.
func (g *Graph) PrereqsOf(coreLoopID string) []string {
	return g.transitiveWalk(coreLoopID, g.prereqsOf)
}

// DependentsOf returns every transitive dependent of coreLoopID, via BFS
// over direct dependentsOf edges.
func (g *Graph) DependentsOf(coreLoopID string) []string {
	return g.transitiveWalk(coreLoopID, g.dependentsOf)
}

func (g *Graph) transitiveWalk(start string, edges map[string][]string) []string {
	visited := map[string]bool{start: true}
	queue := []string{start}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range edges[cur] {
			if !visited[next] {
				visited[next] = true
				out = append(out, next)
				queue = append(queue, next)
			}
		}
	}
	return out
}

// DirectPrereqsOf returns the immediate prerequisites of coreLoopID.
func (g *Graph) DirectPrereqsOf(coreLoopID string) []string {
	return append([]string(nil), g.prereqsOf[coreLoopID]...)
}
