package service

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"brainpulse/internal/models"
	"brainpulse/internal/tasks"
	"brainpulse/internal/validation"
)

// Relaxation steps, in the order they are tried
const (
	RelaxNone      = "none"
	RelaxLength    = "length"
	RelaxCategory  = "category"
	RelaxExclusion = "exclusion"
	RelaxAll       = "all"
)

// WordSource provides the word pool of a difficulty
type WordSource interface {
	LoadDifficulty(ctx context.Context, difficulty models.Difficulty) ([]models.Word, error)
}

// Enqueuer schedules follow-up tasks
type Enqueuer interface {
	Enqueue(name string, fn tasks.Func) error
}

// SelectOptions describes a word request
type SelectOptions struct {
	Count      int
	Difficulty models.Difficulty
	UserID     int64
	Categories []string
	MinLength  *int
	MaxLength  *int
}

// SelectionMetadata describes how a selection was made
type SelectionMetadata struct {
	Requested      int
	Returned       int
	Excluded       int
	TotalAvailable int
	FiltersRelaxed bool
	RelaxationStep string
}

// Selection is the result of ContentSelector.Select
type Selection struct {
	Words    []models.Word
	Metadata SelectionMetadata
}

// ContentSelector picks random words honouring filters and recent usage
type ContentSelector struct {
	words   WordSource
	tracker *ExclusionTracker
	queue   Enqueuer
	window  int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewContentSelector creates a selector. A nil rng is seeded from the clock.
func NewContentSelector(words WordSource, tracker *ExclusionTracker, queue Enqueuer, window int, rng *rand.Rand) *ContentSelector {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>7|1))
	}
	return &ContentSelector{
		words:   words,
		tracker: tracker,
		queue:   queue,
		window:  window,
		rng:     rng,
	}
}

// Select returns min(Count, pool) random words for the request
func (s *ContentSelector) Select(ctx context.Context, opts SelectOptions) (*Selection, error) {
	if err := validateSelectOptions(opts); err != nil {
		return nil, err
	}

	pool, err := s.words.LoadDifficulty(ctx, opts.Difficulty)
	if err != nil {
		log.WithField("difficulty", opts.Difficulty).WithError(err).Error("Failed to load word pool")
		return nil, err
	}

	excluded := s.tracker.RecentlyUsed(ctx, opts.UserID, models.ContentTypeWords, s.window)
	candidates, step := relax(pool, opts, excluded)
	if step != RelaxNone {
		log.WithFields(log.Fields{
			"user_id":   opts.UserID,
			"step":      step,
			"requested": opts.Count,
			"available": len(candidates),
		}).Info("Word filters relaxed")
	}

	selected := s.sample(candidates, opts.Count)
	s.recordUsage(opts.UserID, selected)

	return &Selection{
		Words: selected,
		Metadata: SelectionMetadata{
			Requested:      opts.Count,
			Returned:       len(selected),
			Excluded:       len(excluded),
			TotalAvailable: len(pool),
			FiltersRelaxed: step != RelaxNone,
			RelaxationStep: step,
		},
	}, nil
}

func validateSelectOptions(opts SelectOptions) error {
	if opts.Count <= 0 {
		return validation.NewFieldError("count", "count must be greater than 0")
	}
	if err := validation.ValidateDifficulty(string(opts.Difficulty)); err != nil {
		return err
	}
	if opts.UserID <= 0 {
		return validation.NewFieldError("userId", "user is required")
	}
	if opts.MinLength != nil && *opts.MinLength < 0 {
		return validation.NewFieldError("minLength", "minLength must not be negative")
	}
	if opts.MaxLength != nil && *opts.MaxLength < 0 {
		return validation.NewFieldError("maxLength", "maxLength must not be negative")
	}
	if opts.MinLength != nil && opts.MaxLength != nil && *opts.MinLength > *opts.MaxLength {
		return validation.NewFieldError("minLength", "minLength (%d) must not exceed maxLength (%d)", *opts.MinLength, *opts.MaxLength)
	}
	return nil
}

// relax filters pool with all constraints and drops them one by one until
// the candidates cover the requested count. It always returns a fresh slice.
type relaxStep struct {
	name string
	keep func(models.Word) bool
}

// relaxSteps lists the filters tried in order. Each of none, length and
// category keeps a superset of the step before it. The exclusion step brings
// back recently used words but restores the category filter, so it is not a
// superset of category.
func relaxSteps(opts SelectOptions, excluded map[string]struct{}) []relaxStep {
	categories := make(map[string]struct{}, len(opts.Categories))
	for _, c := range opts.Categories {
		categories[c] = struct{}{}
	}

	inCategory := func(w models.Word) bool {
		if len(categories) == 0 {
			return true
		}
		_, ok := categories[w.Category]
		return ok
	}
	inLength := func(w models.Word) bool {
		if opts.MinLength != nil && w.Length < *opts.MinLength {
			return false
		}
		if opts.MaxLength != nil && w.Length > *opts.MaxLength {
			return false
		}
		return true
	}
	fresh := func(w models.Word) bool {
		_, seen := excluded[models.NormalizeWord(w.Text)]
		return !seen
	}

	return []relaxStep{
		{RelaxNone, func(w models.Word) bool { return inCategory(w) && inLength(w) && fresh(w) }},
		{RelaxLength, func(w models.Word) bool { return inCategory(w) && fresh(w) }},
		{RelaxCategory, fresh},
		{RelaxExclusion, inCategory},
	}
}

func relax(pool []models.Word, opts SelectOptions, excluded map[string]struct{}) ([]models.Word, string) {
	for _, step := range relaxSteps(opts, excluded) {
		candidates := filterWords(pool, step.keep)
		if len(candidates) >= opts.Count {
			return candidates, step.name
		}
	}

	return append([]models.Word(nil), pool...), RelaxAll
}

func filterWords(pool []models.Word, keep func(models.Word) bool) []models.Word {
	out := make([]models.Word, 0, len(pool))
	for _, w := range pool {
		if keep(w) {
			out = append(out, w)
		}
	}
	return out
}

// sample runs a partial Fisher-Yates shuffle over candidates in place
func (s *ContentSelector) sample(candidates []models.Word, count int) []models.Word {
	n := min(count, len(candidates))

	s.mu.Lock()
	for i := 0; i < n; i++ {
		j := i + s.rng.IntN(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	s.mu.Unlock()

	return candidates[:n:n]
}

func (s *ContentSelector) recordUsage(userID int64, words []models.Word) {
	if len(words) == 0 {
		return
	}
	items := append([]models.Word(nil), words...)
	err := s.queue.Enqueue("record-usage", func(ctx context.Context) error {
		return s.tracker.RecordUsage(ctx, userID, models.ContentTypeWords, items)
	})
	if err != nil {
		log.WithField("user_id", userID).WithError(err).Warn("Usage not recorded")
	}
}
