package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/studymesh/ale/internal/prereq"
	"github.com/studymesh/ale/internal/store"
)

var prereqCmd = &cobra.Command{
	Use:   "prereq",
	Short: "Manage the prerequisite graph between core loops",
}

func init() {
	prereqCmd.AddCommand(prereqAddCmd)
	prereqCmd.AddCommand(prereqListCmd)
}

func openPrereqGraph(cmd *cobra.Command) (*prereq.Graph, *store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	graph, err := prereq.Load(cmd.Context(), s.PrereqRepo())
	if err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("load prerequisite graph: %w", err)
	}
	return graph, s, nil
}

var prereqAddCmd = &cobra.Command{
	Use:   "add <prereq-core-loop-id> <dependent-core-loop-id>",
	Short: "Add a prerequisite edge, rejecting edges that would form a cycle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		graph, s, err := openPrereqGraph(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := graph.AddEdge(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", args[0], args[1])
		return nil
	},
}

var prereqListCmd = &cobra.Command{
	Use:   "list <core-loop-id>",
	Short: "List direct and transitive prerequisites and dependents of a core loop",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		graph, s, err := openPrereqGraph(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		prereqs := graph.PrereqsOf(args[0])
		dependents := graph.DependentsOf(args[0])

		fmt.Printf("prerequisites: %s\n", joinOrNone(prereqs))
		fmt.Printf("dependents:    %s\n", joinOrNone(dependents))
		return nil
	},
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, ", ")
}
