package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/studymesh/ale/internal/advisor"
	"github.com/studymesh/ale/internal/prereq"
	"github.com/studymesh/ale/internal/store"
)

var advisorCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Query recommendations over a student's mastery state",
}

func init() {
	advisorCmd.AddCommand(advisorDepthCmd)
	advisorCmd.AddCommand(advisorPathCmd)
	advisorCmd.AddCommand(advisorGapsCmd)

	for _, c := range []*cobra.Command{advisorDepthCmd, advisorPathCmd, advisorGapsCmd} {
		c.Flags().String("student", "", "student id (required)")
	}
	advisorDepthCmd.Flags().String("core-loop", "", "core loop id (required)")
	advisorPathCmd.Flags().String("course", "", "course id (required)")
	advisorPathCmd.Flags().Int("k", 10, "learning path length")
	advisorGapsCmd.Flags().String("course", "", "course id (required)")
}

func buildAdvisor(cmd *cobra.Command) (*advisor.Advisor, *store.Store, error) {
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

	return advisor.New(s.CorpusRepo(), s.ReviewRepo(), graph), s, nil
}

var advisorDepthCmd = &cobra.Command{
	Use:   "depth",
	Short: "Show the recommended content depth for a core loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		adv, s, err := buildAdvisor(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		student, _ := cmd.Flags().GetString("student")
		coreLoop, _ := cmd.Flags().GetString("core-loop")

		depth, err := adv.Depth(cmd.Context(), student, coreLoop)
		if err != nil {
			return err
		}
		fmt.Println(depth)
		return nil
	},
}

var advisorPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the top-K recommended learning path",
	RunE: func(cmd *cobra.Command, args []string) error {
		adv, s, err := buildAdvisor(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		student, _ := cmd.Flags().GetString("student")
		course, _ := cmd.Flags().GetString("course")
		k, _ := cmd.Flags().GetInt("k")

		path, err := adv.LearningPath(cmd.Context(), student, course, k, time.Now())
		if err != nil {
			return err
		}
		for i, item := range path {
			fmt.Printf("%2d. [%-6s] %s (%s)\n", i+1, item.Urgency, item.CoreLoopID, item.Reason)
		}
		return nil
	},
}

var advisorGapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Show mastery gaps for a course",
	RunE: func(cmd *cobra.Command, args []string) error {
		adv, s, err := buildAdvisor(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		student, _ := cmd.Flags().GetString("student")
		course, _ := cmd.Flags().GetString("course")

		gaps, err := adv.Gaps(cmd.Context(), student, course)
		if err != nil {
			return err
		}
		for _, g := range gaps {
			fmt.Printf("%-8s %-20s mastery=%.2f\n", g.Severity, g.CoreLoopID, g.Mastery)
		}
		return nil
	},
}
