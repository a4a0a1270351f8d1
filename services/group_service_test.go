package services

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/Dosada05/scrimverse-engine/grouping"
	"github.com/Dosada05/scrimverse-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type groupFixture struct {
	svc       GroupService
	tournRepo *fakeTournamentRepo
	regRepo   *fakeRegistrationRepo
	groupRepo *fakeGroupRepo
	matchRepo *fakeMatchRepo
}

func newGroupFixture() *groupFixture {
	tournRepo := newFakeTournamentRepo()
	regRepo := newFakeRegistrationRepo()
	groupRepo := newFakeGroupRepo(regRepo)
	matchRepo := newFakeMatchRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rng := rand.New(rand.NewSource(1))

	svc := NewGroupService(nil, tournRepo, regRepo, groupRepo, matchRepo,
		newFakeScoreRepo(), grouping.NewHub(), logger, rng)

	return &groupFixture{
		svc:       svc,
		tournRepo: tournRepo,
		regRepo:   regRepo,
		groupRepo: groupRepo,
		matchRepo: matchRepo,
	}
}

func (f *groupFixture) addOngoingTournament(t *testing.T, mode models.EventMode, teamCount int) (*models.Tournament, []int) {
	t.Helper()
	ctx := context.Background()
	tour := &models.Tournament{
		HostID:       testHostID,
		Title:        "Spring Cup",
		EventMode:    mode,
		Status:       models.StatusOngoing,
		CurrentRound: 1,
		RoundStatus:  models.RoundStateMap{1: {Status: models.RoundOngoing}},
	}
	require.NoError(t, f.tournRepo.Create(ctx, tour))

	regIDs := make([]int, teamCount)
	for i := 0; i < teamCount; i++ {
		teamID := 100 + i
		reg := &models.Registration{
			TournamentID: tour.ID,
			TeamID:       &teamID,
			Status:       models.RegistrationConfirmed,
		}
		require.NoError(t, f.regRepo.Create(ctx, nil, reg))
		regIDs[i] = reg.ID
	}
	return tour, regIDs
}

func TestConfigureRoundOnFreshOngoingRound(t *testing.T) {
	// Сразу после старта турнира раунд ongoing, но групп ещё нет —
	// конфигурация должна проходить.
	f := newGroupFixture()
	tour, _ := f.addOngoingTournament(t, models.ModeTournament, 4)

	groups, err := f.svc.ConfigureRound(context.Background(), tour.ID, testHostID, ConfigureRoundInput{
		TeamsPerGroup:      4,
		QualifyingPerGroup: 2,
		MatchesPerGroup:    3,
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Teams, 4)
	assert.Len(t, groups[0].Matches, 3)
	assert.Equal(t, models.GroupWaiting, groups[0].Status)

	stored, err := f.tournRepo.GetByID(context.Background(), nil, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundOngoing, stored.RoundStatus[1].Status)
	require.NotNil(t, stored.RoundByNumber(1))
	assert.Equal(t, 2, stored.RoundByNumber(1).QualifyingTeams)

	// Повторная конфигурация того же раунда отклоняется.
	_, err = f.svc.ConfigureRound(context.Background(), tour.ID, testHostID, ConfigureRoundInput{
		TeamsPerGroup:      4,
		QualifyingPerGroup: 2,
	})
	assert.ErrorIs(t, err, ErrRoundAlreadyConfigured)
}

func TestConfigureRoundAssignsByeForOddHeadToHead(t *testing.T) {
	// Три команды в head-to-head формате: одна получает bye и не попадает
	// ни в одну группу, её ID сохраняется в состоянии раунда.
	f := newGroupFixture()
	tour, regs := f.addOngoingTournament(t, models.ModeTournament, 3)

	groups, err := f.svc.ConfigureRound(context.Background(), tour.ID, testHostID, ConfigureRoundInput{
		TeamsPerGroup:      2,
		QualifyingPerGroup: 1,
		MatchesPerGroup:    1,
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Teams, 2)

	stored, err := f.tournRepo.GetByID(context.Background(), nil, tour.ID)
	require.NoError(t, err)
	state := stored.RoundStatus[1]
	require.NotNil(t, state.ByeTeamID)
	assert.Contains(t, regs, *state.ByeTeamID)
	for _, member := range groups[0].Teams {
		assert.NotEqual(t, *state.ByeTeamID, member.ID)
	}
}

func TestConfigureRoundScrimForcesSingleGroup(t *testing.T) {
	f := newGroupFixture()
	tour, _ := f.addOngoingTournament(t, models.ModeScrim, 7)

	// Запрошенные параметры игнорируются: скрим — одна группа без отбора,
	// матчей не больше лимита.
	groups, err := f.svc.ConfigureRound(context.Background(), tour.ID, testHostID, ConfigureRoundInput{
		TeamsPerGroup:      2,
		QualifyingPerGroup: 1,
		MatchesPerGroup:    10,
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Teams, 7)
	assert.Equal(t, 0, groups[0].QualifyingTeams)
	assert.Len(t, groups[0].Matches, 6)
}

func TestConfigureRoundValidation(t *testing.T) {
	t.Run("no confirmed teams", func(t *testing.T) {
		f := newGroupFixture()
		tour, _ := f.addOngoingTournament(t, models.ModeTournament, 0)
		_, err := f.svc.ConfigureRound(context.Background(), tour.ID, testHostID, ConfigureRoundInput{
			TeamsPerGroup: 2,
		})
		assert.ErrorIs(t, err, ErrNoTeamsForRound)
	})

	t.Run("group larger than lobby", func(t *testing.T) {
		f := newGroupFixture()
		tour, _ := f.addOngoingTournament(t, models.ModeTournament, 4)
		_, err := f.svc.ConfigureRound(context.Background(), tour.ID, testHostID, ConfigureRoundInput{
			TeamsPerGroup: models.MaxTeamsPerGroup + 1,
		})
		assert.ErrorIs(t, err, ErrInvalidGroupConfig)
	})

	t.Run("qualifying exceeds group size", func(t *testing.T) {
		f := newGroupFixture()
		tour, _ := f.addOngoingTournament(t, models.ModeTournament, 4)
		_, err := f.svc.ConfigureRound(context.Background(), tour.ID, testHostID, ConfigureRoundInput{
			TeamsPerGroup:      2,
			QualifyingPerGroup: 3,
		})
		assert.ErrorIs(t, err, ErrInvalidGroupConfig)
	})

	t.Run("completed round cannot be reconfigured", func(t *testing.T) {
		f := newGroupFixture()
		tour, _ := f.addOngoingTournament(t, models.ModeTournament, 4)
		tour.RoundStatus[1] = models.RoundState{Status: models.RoundCompleted}
		require.NoError(t, f.tournRepo.UpdateRoundState(context.Background(), nil, tour))

		_, err := f.svc.ConfigureRound(context.Background(), tour.ID, testHostID, ConfigureRoundInput{
			TeamsPerGroup: 2,
		})
		assert.ErrorIs(t, err, ErrRoundAlreadyConfigured)
	})
}
