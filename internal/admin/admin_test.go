package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalgraph/internal/config"
	"github.com/sawpanic/signalgraph/internal/logging"
	"github.com/sawpanic/signalgraph/internal/pipelineerr"
)

func TestFreezeRejectsWeightUpdate(t *testing.T) {
	log := logging.New("error", nil)
	s := New(config.Default(), log)

	s.SetFreeze("ops", config.FreezeActive)

	err := s.SetConfidenceWeights("ops", config.ConfidenceWeights{Coverage: 1})
	require.Error(t, err)
	assert.True(t, pipelineerr.Is(err, pipelineerr.KindPolicyViolation))

	// unchanged
	assert.Equal(t, config.DefaultConfidenceWeights(), s.Snapshot().ConfidenceWeights)
}

func TestFreezeDeactivationIsAudited(t *testing.T) {
	log := logging.New("error", nil)
	s := New(config.Default(), log)

	s.SetFreeze("ops", config.FreezeActive)
	s.SetFreeze("ops", config.FreezeInactive)

	audit := s.Audit()
	require.Len(t, audit, 2)
	assert.Equal(t, "set_freeze:ACTIVE", audit[0].Action)
	assert.Equal(t, "set_freeze:INACTIVE", audit[1].Action)
	assert.True(t, audit[1].Accepted)

	// writes succeed again once unfrozen
	err := s.SetConfidenceWeights("ops", config.ConfidenceWeights{Coverage: 0.4, Actors: 0.6})
	require.NoError(t, err)
}

func TestWritesAllowedWhenNotFrozen(t *testing.T) {
	log := logging.New("error", nil)
	s := New(config.Default(), log)

	err := s.SetConfidenceWeights("ops", config.ConfidenceWeights{Coverage: 0.5, Actors: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.5, s.Snapshot().ConfidenceWeights.Coverage)

	audit := s.Audit()
	require.Len(t, audit, 1)
	assert.True(t, audit[0].Accepted)
}
