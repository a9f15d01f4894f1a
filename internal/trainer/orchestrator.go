// Package trainer drives a word memory exercise through its phases:
// intro, study, recall and results.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"brainpulse/internal/models"
	"brainpulse/internal/scoring"
)

// Phase is a step of the exercise
type Phase string

const (
	PhaseIntro   Phase = "intro"
	PhaseStudy   Phase = "study"
	PhaseRecall  Phase = "recall"
	PhaseResults Phase = "results"
)

// TrainingType is the module name reported with every submission
const TrainingType = "Word Memory"

const warningTTL = 3 * time.Second

var (
	ErrWrongPhase      = errors.New("action not allowed in this phase")
	ErrEmptyRecall     = errors.New("recall entry is empty")
	ErrDuplicateRecall = errors.New("word already recalled")
	ErrNoRecall        = errors.New("recall at least one word")
	ErrTimedAdvance    = errors.New("words advance on a timer")
	ErrNoWords         = errors.New("no words available")
	ErrClosed          = errors.New("trainer closed")
)

// FetchRequest asks the server for words
type FetchRequest struct {
	Count      int               `json:"count"`
	Difficulty models.Difficulty `json:"difficulty"`
	Categories []string          `json:"categories,omitempty"`
	MinLength  *int              `json:"minLength,omitempty"`
	MaxLength  *int              `json:"maxLength,omitempty"`
}

// WordFetcher loads the words of an exercise
type WordFetcher interface {
	FetchWords(ctx context.Context, req FetchRequest) ([]models.Word, error)
}

// Submission is a finished exercise as sent to the server
type Submission struct {
	TrainingType  string                      `json:"trainingType"`
	Configuration models.SessionConfiguration `json:"configuration"`
	Results       models.SessionResults       `json:"results"`
	ContentUsed   []models.Word               `json:"contentUsed,omitempty"`
}

// Submitter persists finished exercises
type Submitter interface {
	SubmitSession(ctx context.Context, s Submission) error
}

// State is a snapshot of the orchestrator
type State struct {
	Phase    Phase
	Config   Config
	Visible  []models.Word
	Position int
	Total    int
	Recalled []string
	Warning  string
	Result   *scoring.Evaluation
}

// Orchestrator runs one exercise at a time. All methods are safe for
// concurrent use; timer callbacks take the same lock.
type Orchestrator struct {
	fetcher   WordFetcher
	submitter Submitter
	clock     Clock
	onChange  func(State)

	mu         sync.Mutex
	phase      Phase
	cfg        Config
	words      []models.Word
	position   int
	recalled   []string
	warning    string
	result     *scoring.Evaluation
	studyStart time.Time
	elapsed    time.Duration

	// gen is bumped on every transition; timer callbacks from an older
	// generation are ignored.
	gen          uint64
	studyTimer   Timer
	itemTimer    Timer
	warningTimer Timer
	closed       bool

	submits sync.WaitGroup
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock replaces the real clock
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// OnChange registers a callback invoked after every state change. It runs
// without the orchestrator lock held.
func OnChange(fn func(State)) Option {
	return func(o *Orchestrator) { o.onChange = fn }
}

// New creates an orchestrator in the intro phase with the medium preset
func New(fetcher WordFetcher, submitter Submitter, opts ...Option) *Orchestrator {
	cfg, _ := PresetConfig(models.DifficultyMedium)
	o := &Orchestrator{
		fetcher:   fetcher,
		submitter: submitter,
		clock:     RealClock{},
		phase:     PhaseIntro,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Configure sets the exercise configuration. Only allowed in the intro phase.
func (o *Orchestrator) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase != PhaseIntro {
		return fmt.Errorf("configure: %w", ErrWrongPhase)
	}
	o.cfg = cfg
	return nil
}

// Start fetches the words and enters the study phase
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.phase != PhaseIntro {
		o.mu.Unlock()
		return fmt.Errorf("start: %w", ErrWrongPhase)
	}
	o.gen++
	gen := o.gen
	cfg := o.cfg
	o.mu.Unlock()

	words, err := o.fetcher.FetchWords(ctx, FetchRequest{
		Count:      cfg.WordCount,
		Difficulty: cfg.Difficulty,
		Categories: cfg.Categories,
		MinLength:  cfg.MinLength,
		MaxLength:  cfg.MaxLength,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch words: %w", err)
	}
	if len(words) == 0 {
		return ErrNoWords
	}

	o.mu.Lock()
	if o.gen != gen || o.phase != PhaseIntro || o.closed {
		o.mu.Unlock()
		return fmt.Errorf("start: %w", ErrWrongPhase)
	}
	o.words = words
	o.position = 0
	o.recalled = nil
	o.result = nil
	o.enterStudy()
	state := o.snapshot()
	o.mu.Unlock()

	o.notify(state)
	return nil
}

// enterStudy arms the study timer and, in timed sequential mode, the item timer
func (o *Orchestrator) enterStudy() {
	o.gen++
	o.phase = PhaseStudy
	o.studyStart = o.clock.Now()

	gen := o.gen
	o.studyTimer = o.clock.AfterFunc(o.cfg.StudyTime, func() {
		o.fire(gen, o.toRecall)
	})
	if o.cfg.Sequential && o.cfg.ItemTime > 0 {
		o.armItemTimer()
	}
}

func (o *Orchestrator) armItemTimer() {
	gen := o.gen
	o.itemTimer = o.clock.AfterFunc(o.cfg.ItemTime, func() {
		o.fire(gen, o.advance)
	})
}

// fire runs a timer transition unless the timer is stale
func (o *Orchestrator) fire(gen uint64, transition func()) {
	o.mu.Lock()
	if gen != o.gen || o.closed {
		o.mu.Unlock()
		return
	}
	transition()
	state := o.snapshot()
	o.mu.Unlock()

	o.notify(state)
}

// advance reveals the next word or moves to recall after the last one
func (o *Orchestrator) advance() {
	o.position++
	if o.position >= len(o.words) {
		o.toRecall()
		return
	}
	if o.cfg.ItemTime > 0 {
		o.armItemTimer()
	}
}

func (o *Orchestrator) toRecall() {
	o.stopTimers()
	o.gen++
	o.elapsed = o.clock.Now().Sub(o.studyStart)
	o.phase = PhaseRecall
}

// Advance shows the next word in manual sequential mode
func (o *Orchestrator) Advance() error {
	o.mu.Lock()
	if o.phase != PhaseStudy || !o.cfg.Sequential {
		o.mu.Unlock()
		return fmt.Errorf("advance: %w", ErrWrongPhase)
	}
	if !o.cfg.ManualAdvance() {
		o.mu.Unlock()
		return ErrTimedAdvance
	}
	o.advance()
	state := o.snapshot()
	o.mu.Unlock()

	o.notify(state)
	return nil
}

// Skip ends the study phase early
func (o *Orchestrator) Skip() error {
	return o.transition(PhaseStudy, o.toRecall)
}

// AddRecall records a recalled word. Empty and repeated entries are
// rejected; a repeat also sets a short-lived warning.
func (o *Orchestrator) AddRecall(text string) error {
	entry := strings.TrimSpace(text)

	o.mu.Lock()
	if o.phase != PhaseRecall {
		o.mu.Unlock()
		return fmt.Errorf("recall: %w", ErrWrongPhase)
	}
	if entry == "" {
		o.mu.Unlock()
		return ErrEmptyRecall
	}

	norm := models.NormalizeWord(entry)
	for _, r := range o.recalled {
		if models.NormalizeWord(r) == norm {
			o.setWarning(fmt.Sprintf("%q is already in your list", entry))
			state := o.snapshot()
			o.mu.Unlock()
			o.notify(state)
			return ErrDuplicateRecall
		}
	}

	o.recalled = append(o.recalled, entry)
	o.clearWarning()
	state := o.snapshot()
	o.mu.Unlock()

	o.notify(state)
	return nil
}

func (o *Orchestrator) setWarning(msg string) {
	if o.warningTimer != nil {
		o.warningTimer.Stop()
	}
	o.warning = msg
	gen := o.gen
	o.warningTimer = o.clock.AfterFunc(warningTTL, func() {
		o.fire(gen, func() { o.warning = "" })
	})
}

func (o *Orchestrator) clearWarning() {
	if o.warningTimer != nil {
		o.warningTimer.Stop()
		o.warningTimer = nil
	}
	o.warning = ""
}

// RemoveRecall deletes the recalled entry at index
func (o *Orchestrator) RemoveRecall(index int) error {
	o.mu.Lock()
	if o.phase != PhaseRecall {
		o.mu.Unlock()
		return fmt.Errorf("remove: %w", ErrWrongPhase)
	}
	if index < 0 || index >= len(o.recalled) {
		o.mu.Unlock()
		return fmt.Errorf("no recalled entry at %d", index)
	}
	o.recalled = append(o.recalled[:index], o.recalled[index+1:]...)
	o.clearWarning()
	state := o.snapshot()
	o.mu.Unlock()

	o.notify(state)
	return nil
}

// Finish scores the recall and enters the results phase. The result is
// available immediately; the submission runs in the background and a
// failure is only logged.
func (o *Orchestrator) Finish(ctx context.Context) (*scoring.Evaluation, error) {
	o.mu.Lock()
	if o.phase != PhaseRecall {
		o.mu.Unlock()
		return nil, fmt.Errorf("finish: %w", ErrWrongPhase)
	}
	if len(o.recalled) == 0 {
		o.mu.Unlock()
		return nil, ErrNoRecall
	}

	presented := make([]string, len(o.words))
	for i, w := range o.words {
		presented[i] = w.Text
	}
	eval := scoring.Evaluate(presented, o.recalled)

	o.stopTimers()
	o.gen++
	o.phase = PhaseResults
	o.result = &eval
	o.warning = ""
	submission := o.submission(eval, presented)
	state := o.snapshot()
	o.submits.Add(1)
	o.mu.Unlock()

	go o.submit(context.WithoutCancel(ctx), submission)
	o.notify(state)
	return &eval, nil
}

func (o *Orchestrator) submission(eval scoring.Evaluation, presented []string) Submission {
	correct := len(eval.Correct)
	incorrect := len(eval.Incorrect)
	missed := len(eval.Missed)
	score := float64(eval.Score)
	spent := o.elapsed.Seconds()

	used := make([]models.Word, len(o.words))
	copy(used, o.words)

	return Submission{
		TrainingType: TrainingType,
		Configuration: models.SessionConfiguration{
			Difficulty: string(o.cfg.Difficulty),
			Extra: map[string]any{
				"wordCount":  o.cfg.WordCount,
				"studyTime":  int(o.cfg.StudyTime / time.Second),
				"custom":     o.cfg.Custom,
				"sequential": o.cfg.Sequential,
			},
		},
		Results: models.SessionResults{
			Score:          &score,
			TimeSpent:      &spent,
			CorrectCount:   &correct,
			IncorrectCount: &incorrect,
			MissedCount:    &missed,
			Extra: map[string]any{
				"presentedWords": presented,
				"recalledWords":  append([]string(nil), o.recalled...),
			},
		},
		ContentUsed: used,
	}
}

func (o *Orchestrator) submit(ctx context.Context, s Submission) {
	defer o.submits.Done()
	if o.submitter == nil {
		return
	}
	if err := o.submitter.SubmitSession(ctx, s); err != nil {
		log.WithError(err).Warn("Failed to save training session")
	}
}

// Reset stops any timers and returns to the intro phase, keeping the configuration
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.stopTimers()
	o.clearWarning()
	o.gen++
	o.phase = PhaseIntro
	o.words = nil
	o.position = 0
	o.recalled = nil
	o.result = nil
	o.elapsed = 0
	state := o.snapshot()
	o.mu.Unlock()

	o.notify(state)
}

// Close stops all timers and waits for pending submissions
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.stopTimers()
	o.clearWarning()
	o.gen++
	o.mu.Unlock()

	o.submits.Wait()
}

// Wait blocks until pending submissions have finished
func (o *Orchestrator) Wait() {
	o.submits.Wait()
}

// State returns a snapshot of the current state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot()
}

func (o *Orchestrator) transition(from Phase, fn func()) error {
	o.mu.Lock()
	if o.phase != from {
		o.mu.Unlock()
		return fmt.Errorf("%s: %w", o.phase, ErrWrongPhase)
	}
	fn()
	state := o.snapshot()
	o.mu.Unlock()

	o.notify(state)
	return nil
}

func (o *Orchestrator) stopTimers() {
	if o.studyTimer != nil {
		o.studyTimer.Stop()
		o.studyTimer = nil
	}
	if o.itemTimer != nil {
		o.itemTimer.Stop()
		o.itemTimer = nil
	}
}

func (o *Orchestrator) snapshot() State {
	s := State{
		Phase:    o.phase,
		Config:   o.cfg,
		Position: o.position,
		Total:    len(o.words),
		Recalled: append([]string(nil), o.recalled...),
		Warning:  o.warning,
		Result:   o.result,
	}
	if o.phase == PhaseStudy {
		if o.cfg.Sequential {
			if o.position < len(o.words) {
				s.Visible = []models.Word{o.words[o.position]}
			}
		} else {
			s.Visible = append([]models.Word(nil), o.words...)
		}
	}
	return s
}

func (o *Orchestrator) notify(s State) {
	if o.onChange != nil {
		o.onChange(s)
	}
}
