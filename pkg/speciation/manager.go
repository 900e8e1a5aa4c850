package speciation

import (
	"context"
	"math"
	"sort"

	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
	"github.com/XiaoConstantine/evoagent-go/pkg/logging"
	"github.com/google/uuid"
)

// Config bounds the compatibility metric and the species lifecycle.
type Config struct {
	// CompatibilityThreshold is the starting assignment radius around each
	// species representative.
	CompatibilityThreshold float64 `yaml:"compatibility_threshold" validate:"gt=0"`

	// MatchedWeight and DisjointWeight are the compatibility distance
	// coefficients.
	MatchedWeight  float64 `yaml:"matched_weight" validate:"gte=0"`
	DisjointWeight float64 `yaml:"disjoint_weight" validate:"gte=0"`

	// TargetSpecies steers the adaptive threshold: more species than the
	// target widens the radius, fewer narrows it.
	TargetSpecies int     `yaml:"target_species" validate:"gte=1"`
	ThresholdStep float64 `yaml:"threshold_step" validate:"gte=0"`
	MinThreshold  float64 `yaml:"min_threshold" validate:"gt=0"`
	MaxThreshold  float64 `yaml:"max_threshold" validate:"gt=0"`

	// StagnationThreshold is the number of consecutive non-improving
	// generations after which a species goes extinct.
	StagnationThreshold int `yaml:"stagnation_threshold" validate:"gte=1"`
}

// DefaultConfig returns lifecycle constants workable for the default domain.
func DefaultConfig() Config {
	return Config{
		CompatibilityThreshold: 0.35,
		MatchedWeight:          1.0,
		DisjointWeight:         1.0,
		TargetSpecies:          4,
		ThresholdStep:          0.05,
		MinThreshold:           0.05,
		MaxThreshold:           2.0,
		StagnationThreshold:    15,
	}
}

// Species is one niche: a representative anchoring assignment, the current
// members, and the stagnation bookkeeping that decides extinction.
type Species struct {
	ID             string
	Representative *genome.Chromosome
	Members        []*genome.Chromosome

	BestFitness float64
	BestEver    float64
	Stagnation  int
}

// Best returns the fittest current member, breaking ties by lowest ID.
func (s *Species) Best() *genome.Chromosome {
	var best *genome.Chromosome
	for _, m := range s.Members {
		if best == nil {
			best = m
			continue
		}
		fm, fb := genome.OverallOf(m), genome.OverallOf(best)
		if fm > fb || (fm == fb && m.ID < best.ID) {
			best = m
		}
	}
	return best
}

func newSpecies(seed *genome.Chromosome) *Species {
	s := &Species{
		ID:             uuid.New().String(),
		Representative: seed.Clone(),
		BestEver:       math.Inf(-1),
	}
	seed.SpeciesID = s.ID
	s.Members = []*genome.Chromosome{seed}
	return s
}

// Manager owns the species list across generations. It is driven by one
// engine at a time and is not safe for concurrent use.
type Manager struct {
	cfg       Config
	threshold float64
	species   []*Species
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, threshold: cfg.CompatibilityThreshold}
}

// Threshold returns the compatibility radius currently in effect.
func (m *Manager) Threshold() float64 { return m.threshold }

// Species returns the current species list.
func (m *Manager) Species() []*Species { return m.species }

// Speciate reassigns the whole population. Each surviving species carries its
// previous best member forward as representative, every chromosome joins the
// first species whose representative lies within the threshold or seeds a new
// one, empty species are dropped, stagnation counters advance, and the
// threshold is nudged toward the target species count.
func (m *Manager) Speciate(ctx context.Context, pop []*genome.Chromosome) []*Species {
	for _, s := range m.species {
		if best := s.Best(); best != nil {
			s.Representative = best.Clone()
		}
		s.Members = nil
	}

	for _, c := range pop {
		assigned := false
		for _, s := range m.species {
			if Distance(s.Representative, c, m.cfg.MatchedWeight, m.cfg.DisjointWeight) <= m.threshold {
				s.Members = append(s.Members, c)
				c.SpeciesID = s.ID
				assigned = true
				break
			}
		}
		if !assigned {
			m.species = append(m.species, newSpecies(c))
		}
	}

	populated := m.species[:0]
	for _, s := range m.species {
		if len(s.Members) > 0 {
			populated = append(populated, s)
		}
	}
	m.species = populated

	for _, s := range m.species {
		s.BestFitness = genome.OverallOf(s.Best())
		if s.BestFitness > s.BestEver {
			s.BestEver = s.BestFitness
			s.Stagnation = 0
		} else {
			s.Stagnation++
		}
	}

	previous := m.threshold
	m.adaptThreshold()
	if m.threshold != previous {
		logging.GetLogger().Debug(ctx, "compatibility threshold %.3f -> %.3f (%d species, target %d)",
			previous, m.threshold, len(m.species), m.cfg.TargetSpecies)
	}
	return m.species
}

// Cull removes species stagnant past the configured limit and returns the
// surviving chromosomes. When extinction would leave no species at all, the
// least-stagnant one is rescued.
func (m *Manager) Cull(ctx context.Context, generation int) []*genome.Chromosome {
	var active, extinct []*Species
	for _, s := range m.species {
		if s.Stagnation >= m.cfg.StagnationThreshold {
			extinct = append(extinct, s)
		} else {
			active = append(active, s)
		}
	}

	if len(active) == 0 && len(extinct) > 0 {
		sort.Slice(extinct, func(i, j int) bool {
			if extinct[i].Stagnation != extinct[j].Stagnation {
				return extinct[i].Stagnation < extinct[j].Stagnation
			}
			if extinct[i].BestEver != extinct[j].BestEver {
				return extinct[i].BestEver > extinct[j].BestEver
			}
			return extinct[i].ID < extinct[j].ID
		})
		rescued := extinct[0]
		active = []*Species{rescued}
		extinct = extinct[1:]
		logging.GetLogger().Info(ctx, "generation %d: rescued least-stagnant species %s (stagnation %d)",
			generation, rescued.ID, rescued.Stagnation)
	}

	for _, s := range extinct {
		logging.GetLogger().Info(ctx, "generation %d: species %s extinct after %d stagnant generations (%d members removed)",
			generation, s.ID, s.Stagnation, len(s.Members))
	}

	m.species = active
	var survivors []*genome.Chromosome
	for _, s := range active {
		survivors = append(survivors, s.Members...)
	}
	return survivors
}

// Reproducible returns the species eligible to breed this generation, which
// after culling is every remaining species.
func (m *Manager) Reproducible() []*Species {
	return m.species
}

func (m *Manager) adaptThreshold() {
	switch {
	case len(m.species) > m.cfg.TargetSpecies:
		m.threshold += m.cfg.ThresholdStep
	case len(m.species) < m.cfg.TargetSpecies:
		m.threshold -= m.cfg.ThresholdStep
	}
	if m.threshold < m.cfg.MinThreshold {
		m.threshold = m.cfg.MinThreshold
	}
	if m.threshold > m.cfg.MaxThreshold {
		m.threshold = m.cfg.MaxThreshold
	}
}
