package evolution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
)

func islandConfig() IslandConfig {
	cfg := DefaultIslandConfig()
	cfg.Islands = 2
	cfg.MigrationInterval = 1
	cfg.MigrationCount = 1
	cfg.Engine = testConfig()
	return cfg
}

func TestMigrateMovesChampionIntoOtherIsland(t *testing.T) {
	cfg := islandConfig()
	cfg.Engine.PopulationSize = 4
	cfg.Engine.EliteCount = 1

	ic, err := NewIslandCoordinator(cfg, genome.DefaultDomain(), &flatEvaluator{score: 0.2})
	require.NoError(t, err)

	ctx := context.Background()
	for _, eng := range ic.engines {
		eng.initialize(ctx)
	}
	for i, c := range ic.engines[0].population {
		c.Fitness = &genome.FitnessResult{Overall: 0.5 + float64(i)*0.01}
	}
	champion := ic.engines[0].population[3]
	for _, c := range ic.engines[1].population {
		c.Fitness = &genome.FitnessResult{Overall: 0.3}
	}

	ic.migrate(ctx)

	require.Len(t, ic.engines[1].population, 4)
	migrant := findByID(ic.engines[1].population, champion.ID)
	require.NotNil(t, migrant, "champion never reached island 1")
	assert.NotSame(t, champion, migrant)
	assert.InDelta(t, champion.Fitness.Overall, migrant.Fitness.Overall, 1e-12)

	// A second migration round must not duplicate the champion anywhere.
	ic.migrate(ctx)
	for islandIdx, eng := range ic.engines {
		copies := 0
		for _, c := range eng.population {
			if c.ID == champion.ID {
				copies++
			}
		}
		assert.Equal(t, 1, copies, "island %d hosts %d copies of the champion", islandIdx, copies)
	}
}

func TestIslandsEvolveAndStopTogether(t *testing.T) {
	cfg := islandConfig()
	cfg.Engine.MaxGenerations = 3

	ic, err := NewIslandCoordinator(cfg, genome.DefaultDomain(), localEvaluator(t))
	require.NoError(t, err)

	result, err := ic.Evolve(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, ReasonMaxGenerations, result.Terminated)
	require.Len(t, result.Islands, 2)
	for _, island := range result.Islands {
		assert.Equal(t, ReasonMaxGenerations, island.Terminated)
		assert.Equal(t, 3, island.FinalGeneration)
		assert.Len(t, island.History, 3)
	}

	require.NotNil(t, result.Best)
	assert.InDelta(t, 0.9, result.Best.Fitness.Overall, 1e-9)
	for _, eng := range ic.engines {
		assert.Len(t, eng.Population(), 10)
	}
}

func TestIslandsCanceledBeforeFirstGeneration(t *testing.T) {
	ic, err := NewIslandCoordinator(islandConfig(), genome.DefaultDomain(), &flatEvaluator{score: 0.4})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := ic.Evolve(ctx)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, errors.Canceled, errors.CodeOf(err))
}

func TestIslandsDeriveDistinctSeeds(t *testing.T) {
	cfg := islandConfig()
	cfg.Islands = 3

	ic, err := NewIslandCoordinator(cfg, genome.DefaultDomain(), &flatEvaluator{score: 0.4})
	require.NoError(t, err)

	seeds := map[int64]bool{}
	for _, eng := range ic.engines {
		seeds[eng.cfg.Seed] = true
	}
	assert.Len(t, seeds, 3)
}

func TestNewIslandCoordinatorValidation(t *testing.T) {
	domain := genome.DefaultDomain()
	evaluator := &flatEvaluator{score: 0.4}

	cases := []struct {
		name   string
		mutate func(*IslandConfig)
	}{
		{"zero islands", func(c *IslandConfig) { c.Islands = 0 }},
		{"zero migration interval", func(c *IslandConfig) { c.MigrationInterval = 0 }},
		{"migration count not below population", func(c *IslandConfig) { c.MigrationCount = 10 }},
		{"engine config propagates", func(c *IslandConfig) { c.Engine.PopulationSize = 1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := islandConfig()
			tc.mutate(&cfg)
			_, err := NewIslandCoordinator(cfg, domain, evaluator)
			require.Error(t, err)
			assert.Equal(t, errors.ValidationFailed, errors.CodeOf(err))
		})
	}
}
