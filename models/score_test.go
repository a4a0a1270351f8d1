package models_test

import (
	"testing"

	"github.com/Dosada05/scrimverse-engine/models"
	"github.com/stretchr/testify/assert"
)

func TestPlacementPoints(t *testing.T) {
	tests := []struct {
		placement int
		want      int
	}{
		{1, 10},
		{2, 6},
		{3, 5},
		{4, 4},
		{5, 3},
		{6, 2},
		{7, 1},
		{8, 1},
		{9, 0},
		{25, 0},
		{0, 0},
		{-1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, models.PlacementPoints(tt.placement), "placement %d", tt.placement)
	}
}

func TestMatchScoreRecalculate(t *testing.T) {
	s := models.MatchScore{PositionPoints: 6, KillPoints: 9, Wins: 2}
	s.Recalculate()
	// Победы в сумму не входят.
	assert.Equal(t, 15, s.TotalPoints)
}
