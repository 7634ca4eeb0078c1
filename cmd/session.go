package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/studymesh/ale/internal/evaluator"
	"github.com/studymesh/ale/internal/llm"
	"github.com/studymesh/ale/internal/mastery"
	"github.com/studymesh/ale/internal/model"
	"github.com/studymesh/ale/internal/selector"
	"github.com/studymesh/ale/internal/session"
	"github.com/studymesh/ale/internal/store"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage quiz sessions",
}

func init() {
	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionNextCmd)
	sessionCmd.AddCommand(sessionSubmitCmd)
	sessionCmd.AddCommand(sessionCompleteCmd)
	sessionCmd.AddCommand(sessionStatusCmd)

	sessionCreateCmd.Flags().String("student", "", "student id (required)")
	sessionCreateCmd.Flags().String("course", "", "course id (required)")
	sessionCreateCmd.Flags().String("type", string(model.QuizAdaptive), "quiz type: random|topic|core_loop|review|adaptive")
	sessionCreateCmd.Flags().Int("count", 10, "number of questions")
	sessionCreateCmd.Flags().String("topic", "", "restrict to topic id")

	sessionSubmitCmd.Flags().Int("idx", 0, "question index")
	sessionSubmitCmd.Flags().String("exercise", "", "exercise id (must match the frozen question at idx)")
	sessionSubmitCmd.Flags().String("answer", "", "the student's answer text")
	sessionSubmitCmd.Flags().Float64("time", 0, "time taken, in seconds")
	sessionSubmitCmd.Flags().Bool("hint", false, "hint was used")
}

// buildManager wires a Manager against the store at the resolved DB
// path, using the LLM provider configured through the environment. It
// fails if the selected provider has no API key; with ALE_LLM_PROVIDER=mock
// every evaluation fails, so submissions take the score-0 fallback.
func buildManager(cmd *cobra.Command) (*session.Manager, *store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	cfg := llm.ConfigFromEnv()
	provider, err := llm.NewProvider(cmd.Context(), cfg, s.EventRepo())
	if err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("build LLM provider: %w", err)
	}

	// The persisted schema (§6.1) carries exercise metadata, not prompt
	// text — that lives with whatever produced the exercise. The lookup
	// here resolves only what the engine itself owns.
	lookup := func(ctx context.Context, exerciseID string) (string, error) {
		ex, err := s.CorpusRepo().GetExercise(ctx, exerciseID)
		if err != nil {
			return "", err
		}
		if ex == nil {
			return "", fmt.Errorf("exercise %s not found", exerciseID)
		}
		return fmt.Sprintf("exercise %s (difficulty=%s, type=%s)", ex.ID, ex.Difficulty, ex.Type), nil
	}
	eval := evaluator.NewLLMEvaluator(provider, lookup)

	sel := selector.New(s.CorpusRepo(), s.ReviewRepo())
	agg := mastery.New(s.CorpusRepo(), s.ReviewRepo(), s.MasteryRepo())
	mgr := session.New(s.SessionRepo(), s.CorpusRepo(), sel, eval, agg)
	return mgr, s, nil
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new quiz session",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, s, err := buildManager(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		student, _ := cmd.Flags().GetString("student")
		course, _ := cmd.Flags().GetString("course")
		quizType, _ := cmd.Flags().GetString("type")
		count, _ := cmd.Flags().GetInt("count")
		topic, _ := cmd.Flags().GetString("topic")

		id, err := mgr.Create(cmd.Context(), session.CreateRequest{
			StudentID: student,
			CourseID:  course,
			QuizType:  model.QuizType(quizType),
			Count:     count,
			Filters:   model.Filters{TopicID: topic},
		}, time.Now())
		if err != nil {
			return err
		}

		fmt.Println(id)
		return nil
	},
}

var sessionNextCmd = &cobra.Command{
	Use:   "next <session-id>",
	Short: "Show the next unanswered question index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, s, err := buildManager(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		idx, err := mgr.NextQuestion(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if idx == nil {
			fmt.Println("no questions remaining")
			return nil
		}
		fmt.Println(*idx)
		return nil
	},
}

var sessionSubmitCmd = &cobra.Command{
	Use:   "submit <session-id>",
	Short: "Submit an answer for the current question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, s, err := buildManager(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		idx, _ := cmd.Flags().GetInt("idx")
		exercise, _ := cmd.Flags().GetString("exercise")
		answer, _ := cmd.Flags().GetString("answer")
		elapsed, _ := cmd.Flags().GetFloat64("time")
		hint, _ := cmd.Flags().GetBool("hint")

		result, err := mgr.SubmitAnswer(cmd.Context(), args[0], session.SubmitRequest{
			QuestionIdx: idx,
			ExerciseID:  exercise,
			UserAnswer:  answer,
			TimeTakenS:  elapsed,
			HintUsed:    hint,
		}, time.Now())
		if err != nil {
			return err
		}

		fmt.Printf("correct=%v score=%.2f remaining=%d\n", result.Correct, result.Score, result.RemainingCount)
		if result.Feedback != "" {
			fmt.Println(result.Feedback)
		}
		return nil
	},
}

var sessionCompleteCmd = &cobra.Command{
	Use:   "complete <session-id>",
	Short: "Complete a session and print its summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, s, err := buildManager(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		summary, err := mgr.Complete(cmd.Context(), args[0], time.Now())
		if err != nil {
			return err
		}

		fmt.Printf("score: %d/%d (%.0f%%) — %s\n",
			summary.TotalCorrect, summary.TotalQuestions, summary.PercentCorrect*100, passLabel(summary.Passed))
		for diff, b := range summary.PerDifficulty {
			fmt.Printf("  %-8s %d/%d\n", diff, b.Correct, b.Attempted)
		}
		return nil
	},
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show a session's current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, s, err := buildManager(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		st, err := mgr.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("state=%s questions=%d\n", st.State, len(st.QuestionIDs))
		return nil
	},
}

func passLabel(passed bool) string {
	if passed {
		return "pass"
	}
	return "fail"
}
