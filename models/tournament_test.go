package models_test

import (
	"testing"

	"github.com/Dosada05/scrimverse-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalRoundNumber(t *testing.T) {
	tr := models.Tournament{}
	assert.Equal(t, 0, tr.FinalRoundNumber())
	assert.False(t, tr.IsFinalRound(1))

	tr.Rounds = models.RoundConfigList{
		{Round: 1, MaxTeams: 10, QualifyingTeams: 4},
		{Round: 3, MaxTeams: 2},
		{Round: 2, MaxTeams: 4, QualifyingTeams: 2},
	}
	assert.Equal(t, 3, tr.FinalRoundNumber())
	assert.True(t, tr.IsFinalRound(3))
	assert.False(t, tr.IsFinalRound(2))
}

func TestRoundByNumber(t *testing.T) {
	tr := models.Tournament{
		Rounds: models.RoundConfigList{
			{Round: 1, MaxTeams: 10, QualifyingTeams: 4},
			{Round: 2, MaxTeams: 4},
		},
	}

	rc := tr.RoundByNumber(1)
	require.NotNil(t, rc)
	assert.Equal(t, 10, rc.MaxTeams)

	assert.Nil(t, tr.RoundByNumber(5))
}

func TestRoundStateMapJSONB(t *testing.T) {
	bye := 42
	m := models.RoundStateMap{
		1: {Status: models.RoundCompleted},
		2: {Status: models.RoundOngoing, ByeTeamID: &bye},
	}

	raw, err := m.Value()
	require.NoError(t, err)

	var back models.RoundStateMap
	require.NoError(t, back.Scan(raw))

	assert.Equal(t, models.RoundCompleted, back[1].Status)
	require.NotNil(t, back[2].ByeTeamID)
	assert.Equal(t, 42, *back[2].ByeTeamID)
}

func TestNilJSONBValues(t *testing.T) {
	var rounds models.RoundConfigList
	v, err := rounds.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)

	var winners models.WinnersMap
	v, err = winners.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)
}

func TestTeamStatisticsRecalculateTotals(t *testing.T) {
	s := models.TeamStatistics{
		TournamentPositionPoints: 30,
		TournamentKillPoints:     12,
		ScrimPositionPoints:      10,
		ScrimKillPoints:          5,
	}
	s.RecalculateTotals()

	assert.Equal(t, 40, s.TotalPositionPoints)
	assert.Equal(t, 17, s.TotalKillPoints)
	assert.Equal(t, 57, s.TotalPoints)
	assert.Equal(t, 42, s.TournamentPoints())
	assert.Equal(t, 15, s.ScrimPoints())
}
