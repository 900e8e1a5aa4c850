package novelty

import (
	"sort"
	"sync"
	"time"

	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
)

// Config controls scoring and admission for a novelty archive.
type Config struct {
	// K is how many nearest archive entries the novelty score averages over.
	K int `yaml:"k" validate:"min=1"`
	// AdmissionThreshold is the minimum score a candidate must exceed to be
	// archived.
	AdmissionThreshold float64 `yaml:"admission_threshold" validate:"min=0,max=1"`
	// Capacity bounds the archive; admitting past it evicts the entry that
	// was least novel at its own admission time.
	Capacity int `yaml:"capacity" validate:"min=1"`
}

// DefaultConfig returns the archive settings used when none are supplied.
func DefaultConfig() Config {
	return Config{
		K:                  5,
		AdmissionThreshold: 0.12,
		Capacity:           512,
	}
}

// Entry is one archived behavior.
type Entry struct {
	ChromosomeID string
	Generation   int
	Descriptor   Descriptor
	// Novelty is the score the entry had when admitted. Eviction prefers the
	// lowest value.
	Novelty float64
	AddedAt time.Time
}

// Archive stores behavior descriptors and scores new candidates against
// them. Safe for concurrent use.
type Archive struct {
	mu      sync.Mutex
	cfg     Config
	entries []Entry
	now     func() time.Time
}

// NewArchive validates cfg and returns an empty archive.
func NewArchive(cfg Config) (*Archive, error) {
	if cfg.K < 1 {
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "novelty archive requires k >= 1"),
			errors.Fields{"k": cfg.K})
	}
	if cfg.Capacity < 1 {
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "novelty archive requires capacity >= 1"),
			errors.Fields{"capacity": cfg.Capacity})
	}
	if cfg.AdmissionThreshold < 0 || cfg.AdmissionThreshold > 1 {
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "admission threshold must be in [0,1]"),
			errors.Fields{"threshold": cfg.AdmissionThreshold})
	}
	return &Archive{cfg: cfg, now: time.Now}, nil
}

// Score returns the candidate's novelty: the mean distance to its k nearest
// archived neighbors, or 1 when the archive is empty. Fewer than k entries
// average over all of them.
func (a *Archive) Score(descriptor Descriptor) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.score(descriptor)
}

// ScoreAndAdmit scores the candidate and, if the score clears the admission
// threshold, inserts it before releasing the lock. Scoring and insertion
// happen as one atomic step so two near-duplicates submitted concurrently
// cannot both pass against the same archive snapshot.
func (a *Archive) ScoreAndAdmit(chromosomeID string, generation int, descriptor Descriptor) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	score := a.score(descriptor)
	if score <= a.cfg.AdmissionThreshold {
		return score, false
	}

	a.entries = append(a.entries, Entry{
		ChromosomeID: chromosomeID,
		Generation:   generation,
		Descriptor:   descriptor.Clone(),
		Novelty:      score,
		AddedAt:      a.now(),
	})
	if len(a.entries) > a.cfg.Capacity {
		a.evictLeastNovel()
	}
	return score, true
}

// Len reports how many behaviors the archive currently holds.
func (a *Archive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Entries returns a snapshot of the archive contents.
func (a *Archive) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Entry, len(a.entries))
	for i, e := range a.entries {
		out[i] = e
		out[i].Descriptor = e.Descriptor.Clone()
	}
	return out
}

// score must be called with the lock held.
func (a *Archive) score(descriptor Descriptor) float64 {
	if len(a.entries) == 0 {
		return 1.0
	}

	dists := make([]float64, len(a.entries))
	for i, e := range a.entries {
		dists[i] = descriptor.DistanceTo(e.Descriptor)
	}
	sort.Float64s(dists)

	k := a.cfg.K
	if k > len(dists) {
		k = len(dists)
	}
	sum := 0.0
	for _, d := range dists[:k] {
		sum += d
	}
	return sum / float64(k)
}

// evictLeastNovel must be called with the lock held.
func (a *Archive) evictLeastNovel() {
	victim := 0
	for i, e := range a.entries[1:] {
		other := a.entries[victim]
		if e.Novelty < other.Novelty ||
			(e.Novelty == other.Novelty && e.AddedAt.Before(other.AddedAt)) {
			victim = i + 1
		}
	}
	a.entries = append(a.entries[:victim], a.entries[victim+1:]...)
}
