// Command drill runs a word memory exercise in the terminal against a
// BrainPulse server.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"brainpulse/internal/apiclient"
	"brainpulse/internal/models"
	"brainpulse/internal/trainer"
)

type drillOptions struct {
	server     string
	email      string
	password   string
	token      string
	difficulty string
	words      int
	study      int
	sequential bool
	itemTime   int
	categories []string
}

func main() {
	if err := newDrillCmd().Execute(); err != nil {
		log.WithError(err).Error("Drill failed")
		os.Exit(1)
	}
}

func newDrillCmd() *cobra.Command {
	opts := &drillOptions{}
	cmd := &cobra.Command{
		Use:          "drill",
		Short:        "Memorise a word list, then recall as many words as you can",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := apiclient.New(opts.server, nil)
			if opts.token != "" {
				client.SetToken(opts.token)
			} else {
				if _, err := client.Login(ctx, opts.email, opts.password); err != nil {
					return fmt.Errorf("login failed: %w", err)
				}
			}

			return runDrill(ctx, client, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.server, "server", envOr("BRAINPULSE_URL", "http://localhost:8080"), "server URL")
	f.StringVar(&opts.email, "email", os.Getenv("BRAINPULSE_EMAIL"), "account email")
	f.StringVar(&opts.password, "password", os.Getenv("BRAINPULSE_PASSWORD"), "account password")
	f.StringVar(&opts.token, "token", os.Getenv("BRAINPULSE_TOKEN"), "API token, instead of email and password")
	f.StringVar(&opts.difficulty, "difficulty", string(models.DifficultyMedium), "easy, medium or hard")
	f.IntVar(&opts.words, "words", 0, "custom word count (5-50)")
	f.IntVar(&opts.study, "study", 0, "custom study time in seconds (10-300)")
	f.BoolVar(&opts.sequential, "sequential", false, "show one word at a time")
	f.IntVar(&opts.itemTime, "item-time", 0, "seconds per word in sequential mode, 0 to advance with Enter")
	f.StringSliceVar(&opts.categories, "category", nil, "restrict to categories")
	return cmd
}

func (o *drillOptions) config() (trainer.Config, error) {
	difficulty := models.Difficulty(o.difficulty)

	var (
		cfg trainer.Config
		err error
	)
	if o.words > 0 || o.study > 0 {
		preset, perr := trainer.PresetConfig(difficulty)
		if perr != nil {
			return trainer.Config{}, perr
		}
		words, study := o.words, o.study
		if words == 0 {
			words = preset.WordCount
		}
		if study == 0 {
			study = int(preset.StudyTime.Seconds())
		}
		cfg, err = trainer.CustomConfig(difficulty, words, study)
	} else {
		cfg, err = trainer.PresetConfig(difficulty)
	}
	if err != nil {
		return trainer.Config{}, err
	}

	if o.sequential {
		if cfg, err = cfg.WithSequential(o.itemTime); err != nil {
			return trainer.Config{}, err
		}
	}
	cfg.Categories = o.categories
	return cfg, cfg.Validate()
}

// stateFeed queues state changes for the drill loop without blocking the
// orchestrator and without dropping any of them.
type stateFeed struct {
	mu      sync.Mutex
	pending []trainer.State
	ready   chan struct{}
}

func newStateFeed() *stateFeed {
	return &stateFeed{ready: make(chan struct{}, 1)}
}

func (f *stateFeed) push(s trainer.State) {
	f.mu.Lock()
	f.pending = append(f.pending, s)
	f.mu.Unlock()

	select {
	case f.ready <- struct{}{}:
	default:
	}
}

func (f *stateFeed) drain() []trainer.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	f.pending = nil
	return out
}

// readLines forwards input lines until the reader ends or ctx is done
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// runDrill drives one exercise. Phase changes arrive from timers on other
// goroutines and are forwarded to this loop.
func runDrill(ctx context.Context, client *apiclient.Client, cfg trainer.Config, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	feed := newStateFeed()
	o := trainer.New(client, client, trainer.OnChange(feed.push))
	defer o.Close()

	if err := o.Configure(cfg); err != nil {
		return err
	}

	lines := readLines(ctx, in)

	fmt.Fprintf(out, "Memorise %d words in %s. Press Enter to stop studying early.\n", cfg.WordCount, cfg.StudyTime)
	if err := o.Start(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-feed.ready:
			showStates(out, feed.drain())

		case line, ok := <-lines:
			// states raised before this line are shown ahead of its effects
			showStates(out, feed.drain())
			if !ok {
				line = ""
			}
			done, err := handleLine(ctx, o, strings.TrimSpace(line), out)
			if err != nil {
				return err
			}
			if done || !ok {
				o.Wait()
				return nil
			}
		}
	}
}

func showStates(out io.Writer, states []trainer.State) {
	for _, s := range states {
		if s.Phase == trainer.PhaseStudy {
			printState(out, s)
		}
		if s.Phase == trainer.PhaseRecall && len(s.Recalled) == 0 && s.Warning == "" {
			fmt.Fprintln(out, "\nRecall time. Type the words you remember, one per line. An empty line finishes.")
		}
	}
}

// handleLine applies one line of input to the current phase. It reports
// true once results have been shown.
func handleLine(ctx context.Context, o *trainer.Orchestrator, line string, out io.Writer) (bool, error) {
	st := o.State()
	switch st.Phase {
	case trainer.PhaseStudy:
		var err error
		if st.Config.ManualAdvance() {
			err = o.Advance()
		} else {
			err = o.Skip()
		}
		// a timer may have ended the study phase first
		if errors.Is(err, trainer.ErrWrongPhase) {
			err = nil
		}
		return false, err

	case trainer.PhaseRecall:
		if line != "" {
			err := o.AddRecall(line)
			if errors.Is(err, trainer.ErrDuplicateRecall) {
				fmt.Fprintf(out, "  %s is already in your list\n", line)
				return false, nil
			}
			return false, err
		}

		eval, err := o.Finish(ctx)
		if errors.Is(err, trainer.ErrNoRecall) {
			fmt.Fprintln(out, "  Recall at least one word first.")
			return false, nil
		}
		if err != nil {
			return false, err
		}

		fmt.Fprintf(out, "\nScore: %d (%s)\n", eval.Score, eval.PerformanceLevel)
		if eval.Accuracy != nil {
			fmt.Fprintf(out, "Accuracy: %d%%\n", *eval.Accuracy)
		}
		fmt.Fprintf(out, "Correct:   %s\n", strings.Join(eval.Correct, ", "))
		fmt.Fprintf(out, "Incorrect: %s\n", strings.Join(eval.Incorrect, ", "))
		fmt.Fprintf(out, "Missed:    %s\n", strings.Join(eval.Missed, ", "))
		return true, nil
	}
	return false, nil
}

func printState(out io.Writer, s trainer.State) {
	if s.Phase != trainer.PhaseStudy {
		return
	}
	if s.Config.Sequential {
		if len(s.Visible) == 1 {
			fmt.Fprintf(out, "  [%d/%d] %s\n", s.Position+1, s.Total, s.Visible[0].Text)
		}
		return
	}
	for i, w := range s.Visible {
		fmt.Fprintf(out, "  %2d. %s\n", i+1, w.Text)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
