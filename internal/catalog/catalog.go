// Package catalog loads the tiered word corpus and caches it per tier.
package catalog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"brainpulse/internal/models"
)

//go:embed corpus/*.json
var embeddedCorpus embed.FS

// sampleSize is the number of leading entries checked structurally on load
const sampleSize = 5

var (
	ErrUnknownTier  = errors.New("unknown tier")
	ErrEmptyCorpus  = errors.New("corpus is empty")
	ErrInvalidEntry = errors.New("invalid corpus entry")
)

var tiersByDifficulty = map[models.Difficulty]models.Tier{
	models.DifficultyEasy:   models.TierCommon,
	models.DifficultyMedium: models.TierUncommon,
	models.DifficultyHard:   models.TierRare,
	models.DifficultyNormal: models.TierCommon,
}

// Tiers lists every corpus tier
var Tiers = []models.Tier{models.TierCommon, models.TierUncommon, models.TierRare}

// CatalogLoadError is returned when a tier's corpus file is missing or malformed
type CatalogLoadError struct {
	Tier models.Tier
	Err  error
}

func (e *CatalogLoadError) Error() string {
	return fmt.Sprintf("failed to load %s corpus: %v", e.Tier, e.Err)
}

func (e *CatalogLoadError) Unwrap() error {
	return e.Err
}

// TierFor maps a difficulty to its corpus tier
func TierFor(difficulty models.Difficulty) (models.Tier, bool) {
	tier, ok := tiersByDifficulty[difficulty]
	return tier, ok
}

// EmbeddedFS returns the corpus compiled into the binary
func EmbeddedFS() fs.FS {
	sub, err := fs.Sub(embeddedCorpus, "corpus")
	if err != nil {
		panic(err)
	}
	return sub
}

// Catalog reads <tier>.json files from an fs.FS and keeps them for the
// lifetime of the Catalog. The returned slices are shared and must not be
// modified by callers.
type Catalog struct {
	fsys fs.FS

	mu    sync.RWMutex
	cache map[models.Tier][]models.Word
	group singleflight.Group
}

// New creates a catalog backed by fsys
func New(fsys fs.FS) *Catalog {
	return &Catalog{
		fsys:  fsys,
		cache: make(map[models.Tier][]models.Word),
	}
}

// Load returns the words of a tier, reading the corpus on first use
func (c *Catalog) Load(ctx context.Context, tier models.Tier) ([]models.Word, error) {
	c.mu.RLock()
	words, ok := c.cache[tier]
	c.mu.RUnlock()
	if ok {
		return words, nil
	}

	ch := c.group.DoChan(string(tier), func() (interface{}, error) {
		words, err := c.read(tier)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[tier] = words
		c.mu.Unlock()
		return words, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]models.Word), nil
	}
}

// LoadDifficulty loads the tier mapped to difficulty
func (c *Catalog) LoadDifficulty(ctx context.Context, difficulty models.Difficulty) ([]models.Word, error) {
	tier, ok := TierFor(difficulty)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTier, difficulty)
	}
	return c.Load(ctx, tier)
}

// ClearCache drops every cached tier so the next Load reads the corpus again
func (c *Catalog) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[models.Tier][]models.Word)
	c.mu.Unlock()
}

// Warm loads the given tiers concurrently, or all tiers when none are given
func (c *Catalog) Warm(ctx context.Context, tiers ...models.Tier) error {
	if len(tiers) == 0 {
		tiers = Tiers
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, tier := range tiers {
		g.Go(func() error {
			words, err := c.Load(ctx, tier)
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{"tier": tier, "words": len(words)}).Debug("Corpus tier loaded")
			return nil
		})
	}
	return g.Wait()
}

func (c *Catalog) read(tier models.Tier) ([]models.Word, error) {
	if !knownTier(tier) {
		return nil, &CatalogLoadError{Tier: tier, Err: ErrUnknownTier}
	}

	data, err := fs.ReadFile(c.fsys, string(tier)+".json")
	if err != nil {
		return nil, &CatalogLoadError{Tier: tier, Err: err}
	}

	var words []models.Word
	if err := sonic.Unmarshal(data, &words); err != nil {
		return nil, &CatalogLoadError{Tier: tier, Err: fmt.Errorf("malformed corpus: %w", err)}
	}

	if err := validate(words); err != nil {
		return nil, &CatalogLoadError{Tier: tier, Err: err}
	}

	return words, nil
}

// validate checks the corpus is non-empty and that the first entries are well formed
func validate(words []models.Word) error {
	if len(words) == 0 {
		return ErrEmptyCorpus
	}

	for i, w := range words[:min(sampleSize, len(words))] {
		switch {
		case w.Text == "":
			return fmt.Errorf("%w: entry %d has no text", ErrInvalidEntry, i)
		case w.Category == "":
			return fmt.Errorf("%w: entry %d (%s) has no category", ErrInvalidEntry, i, w.Text)
		case w.Length <= 0 || w.Length != len(w.Text):
			return fmt.Errorf("%w: entry %d (%s) has length %d, want %d", ErrInvalidEntry, i, w.Text, w.Length, len(w.Text))
		}
	}
	return nil
}

func knownTier(tier models.Tier) bool {
	for _, t := range Tiers {
		if t == tier {
			return true
		}
	}
	return false
}
