package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Dosada05/scrimverse-engine/grouping"
	"github.com/Dosada05/scrimverse-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type matchFixture struct {
	svc       MatchService
	tournRepo *fakeTournamentRepo
	regRepo   *fakeRegistrationRepo
	groupRepo *fakeGroupRepo
	matchRepo *fakeMatchRepo
	scoreRepo *fakeScoreRepo
	clock     fixedClock
}

func newMatchFixture() *matchFixture {
	tournRepo := newFakeTournamentRepo()
	regRepo := newFakeRegistrationRepo()
	groupRepo := newFakeGroupRepo(regRepo)
	matchRepo := newFakeMatchRepo()
	scoreRepo := newFakeScoreRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := fixedClock{now: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}

	svc := NewMatchService(nil, tournRepo, regRepo, groupRepo, matchRepo, scoreRepo,
		grouping.NewHub(), logger, clock, models.DefaultMatchPolicy())

	return &matchFixture{
		svc:       svc,
		tournRepo: tournRepo,
		regRepo:   regRepo,
		groupRepo: groupRepo,
		matchRepo: matchRepo,
		scoreRepo: scoreRepo,
		clock:     clock,
	}
}

// setupMatch создаёт ongoing-турнир с заданным числом подтверждённых команд,
// группу из groupSize первых регистраций и один матч с заполненной комнатой.
func (f *matchFixture) setupMatch(t *testing.T, confirmed, groupSize int) (*models.Tournament, *models.Match) {
	t.Helper()
	ctx := context.Background()
	tour := &models.Tournament{
		HostID:       testHostID,
		Title:        "Night Scrim",
		EventMode:    models.ModeTournament,
		Status:       models.StatusOngoing,
		CurrentRound: 1,
		RoundStatus:  models.RoundStateMap{1: {Status: models.RoundOngoing}},
	}
	require.NoError(t, f.tournRepo.Create(ctx, tour))

	regIDs := make([]int, confirmed)
	for i := 0; i < confirmed; i++ {
		teamID := 200 + i
		reg := &models.Registration{
			TournamentID: tour.ID,
			TeamID:       &teamID,
			Status:       models.RegistrationConfirmed,
		}
		require.NoError(t, f.regRepo.Create(ctx, nil, reg))
		regIDs[i] = reg.ID
	}

	group := &models.Group{
		TournamentID: tour.ID,
		RoundNumber:  1,
		Name:         "Group A",
		Status:       models.GroupWaiting,
	}
	require.NoError(t, f.groupRepo.Create(ctx, nil, group))
	require.NoError(t, f.groupRepo.AddTeams(ctx, nil, group.ID, regIDs[:groupSize]))

	match := &models.Match{
		GroupID:     group.ID,
		MatchNumber: 1,
		Status:      models.MatchWaiting,
		RoomID:      "1337",
		RoomSecret:  "hunter2",
	}
	require.NoError(t, f.matchRepo.Create(ctx, nil, match))
	return tour, match
}

func TestStartMatchChecksTournamentWideTeams(t *testing.T) {
	// Гейт на число участников смотрит на подтверждённые регистрации всего
	// турнира: матч в группе из одной команды стартует, пока в турнире их две.
	f := newMatchFixture()
	_, match := f.setupMatch(t, 3, 1)

	started, err := f.svc.StartMatch(context.Background(), match.ID, testHostID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchLive, started.Status)
	require.NotNil(t, started.StartedAt)
	assert.Equal(t, f.clock.now, *started.StartedAt)

	// Группа переходит в ongoing вместе с первым матчем.
	group, err := f.groupRepo.GetByID(context.Background(), nil, match.GroupID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupOngoing, group.Status)
}

func TestStartMatchRejectsSingleTeamTournament(t *testing.T) {
	f := newMatchFixture()
	_, match := f.setupMatch(t, 1, 1)

	_, err := f.svc.StartMatch(context.Background(), match.ID, testHostID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStartMatchRequiresRoomDetails(t *testing.T) {
	f := newMatchFixture()
	_, match := f.setupMatch(t, 2, 2)
	require.NoError(t, f.matchRepo.UpdateRoomDetails(context.Background(), nil, match.ID, "", ""))

	_, err := f.svc.StartMatch(context.Background(), match.ID, testHostID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStartMatchSequentialGate(t *testing.T) {
	f := newMatchFixture()
	_, first := f.setupMatch(t, 2, 2)

	second := &models.Match{
		GroupID:     first.GroupID,
		MatchNumber: 2,
		Status:      models.MatchWaiting,
		RoomID:      "1338",
		RoomSecret:  "hunter3",
	}
	require.NoError(t, f.matchRepo.Create(context.Background(), nil, second))

	// Матч №2 не стартует, пока №1 не завершён и не имеет счёта.
	_, err := f.svc.StartMatch(context.Background(), second.ID, testHostID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
