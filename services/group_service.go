package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/Dosada05/scrimverse-engine/grouping"
	"github.com/Dosada05/scrimverse-engine/models"
	"github.com/Dosada05/scrimverse-engine/repositories"
)

// Скримы всегда играются одной группой с ограниченным числом матчей.
const scrimMaxMatches = 6

type ConfigureRoundInput struct {
	TeamsPerGroup      int `json:"teams_per_group"`
	QualifyingPerGroup int `json:"qualifying_per_group"`
	MatchesPerGroup    int `json:"matches_per_group"`
}

type GroupService interface {
	// ConfigureRound нарезает пул команд текущего раунда на группы и создаёт
	// матчи. Повторный вызов для уже настроенного раунда отклоняется.
	ConfigureRound(ctx context.Context, tournamentID, hostID int, input ConfigureRoundInput) ([]*models.Group, error)
	GetGroup(ctx context.Context, groupID int) (*models.Group, error)
	GroupStandings(ctx context.Context, groupID int) ([]grouping.Standing, error)
}

type groupService struct {
	db        *sql.DB
	tournRepo repositories.TournamentRepository
	regRepo   repositories.RegistrationRepository
	groupRepo repositories.GroupRepository
	matchRepo repositories.MatchRepository
	scoreRepo repositories.ScoreRepository
	hub       *grouping.Hub
	logger    *slog.Logger
	rng       *rand.Rand
}

func NewGroupService(
	db *sql.DB,
	tournRepo repositories.TournamentRepository,
	regRepo repositories.RegistrationRepository,
	groupRepo repositories.GroupRepository,
	matchRepo repositories.MatchRepository,
	scoreRepo repositories.ScoreRepository,
	hub *grouping.Hub,
	logger *slog.Logger,
	rng *rand.Rand,
) GroupService {
	return &groupService{
		db:        db,
		tournRepo: tournRepo,
		regRepo:   regRepo,
		groupRepo: groupRepo,
		matchRepo: matchRepo,
		scoreRepo: scoreRepo,
		hub:       hub,
		logger:    logger,
		rng:       rng,
	}
}

func (s *groupService) ConfigureRound(ctx context.Context, tournamentID, hostID int, input ConfigureRoundInput) ([]*models.Group, error) {
	var created []*models.Group
	var roundNumber int

	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := s.tournRepo.LockByID(ctx, tx, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if t.HostID != hostID {
			return ErrForbiddenOperation
		}
		if t.Status != models.StatusOngoing {
			return ErrTournamentNotOngoing
		}

		roundNumber = t.CurrentRound
		if roundNumber < 1 {
			roundNumber = 1
		}

		// Раунд становится ongoing сразу после старта турнира или закрытия
		// предыдущего раунда, поэтому ongoing без групп — это ещё не
		// сконфигурированный раунд. Дубли ловит проверка групп ниже.
		if state, ok := t.RoundStatus[roundNumber]; ok && state.Status == models.RoundCompleted {
			return ErrRoundAlreadyConfigured
		}
		exists, err := s.groupRepo.ExistsForRound(ctx, tx, tournamentID, roundNumber)
		if err != nil {
			return err
		}
		if exists {
			return ErrRoundAlreadyConfigured
		}

		pool, err := s.roundPool(ctx, tx, t, roundNumber)
		if err != nil {
			return err
		}
		if len(pool) == 0 {
			return ErrNoTeamsForRound
		}

		teamsPerGroup := input.TeamsPerGroup
		qualifying := input.QualifyingPerGroup
		matchesPerGroup := input.MatchesPerGroup
		if matchesPerGroup < 1 {
			matchesPerGroup = 1
		}
		if t.IsScrim() {
			// Скрим: одна группа на весь пул, отбора нет.
			teamsPerGroup = len(pool)
			qualifying = 0
			if matchesPerGroup > scrimMaxMatches {
				matchesPerGroup = scrimMaxMatches
			}
		}
		if teamsPerGroup < 1 {
			return fmt.Errorf("%w: teams per group must be positive", ErrInvalidGroupConfig)
		}
		if teamsPerGroup > models.MaxTeamsPerGroup {
			return fmt.Errorf("%w: teams per group exceeds lobby size %d", ErrInvalidGroupConfig, models.MaxTeamsPerGroup)
		}
		if qualifying < 0 || qualifying > teamsPerGroup {
			return fmt.Errorf("%w: qualifying teams must be between 0 and group size", ErrInvalidGroupConfig)
		}

		grouping.Shuffle(pool, s.rng)

		var byeTeamID *int
		if teamsPerGroup == 2 && len(pool)%2 == 1 {
			remaining, bye := grouping.AssignBye(pool, s.rng)
			pool = remaining
			if bye != nil {
				byeTeamID = &bye.ID
			}
		}

		numGroups, sizes, err := grouping.CalculateGroups(len(pool), teamsPerGroup)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidGroupConfig, err)
		}

		created = make([]*models.Group, 0, numGroups)
		offset := 0
		for i := 0; i < numGroups; i++ {
			group := &models.Group{
				TournamentID:    tournamentID,
				RoundNumber:     roundNumber,
				Name:            grouping.GroupName(i),
				QualifyingTeams: qualifying,
				Status:          models.GroupWaiting,
			}
			if err := s.groupRepo.Create(ctx, tx, group); err != nil {
				return err
			}

			members := pool[offset : offset+sizes[i]]
			offset += sizes[i]

			memberIDs := make([]int, len(members))
			for j, m := range members {
				memberIDs[j] = m.ID
			}
			if err := s.groupRepo.AddTeams(ctx, tx, group.ID, memberIDs); err != nil {
				return err
			}
			group.Teams = members

			for n := 1; n <= matchesPerGroup; n++ {
				match := &models.Match{
					GroupID:     group.ID,
					MatchNumber: n,
					Status:      models.MatchWaiting,
				}
				if err := s.matchRepo.Create(ctx, tx, match); err != nil {
					return err
				}
				group.Matches = append(group.Matches, *match)
			}
			created = append(created, group)
		}

		if t.RoundStatus == nil {
			t.RoundStatus = models.RoundStateMap{}
		}
		t.CurrentRound = roundNumber
		t.RoundStatus[roundNumber] = models.RoundState{Status: models.RoundOngoing, ByeTeamID: byeTeamID}
		s.upsertRoundConfig(t, models.RoundConfig{
			Round:           roundNumber,
			MaxTeams:        teamsPerGroup,
			QualifyingTeams: qualifying * numGroups,
		})

		return s.tournRepo.UpdateRoundState(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "round configured",
		slog.Int("tournament_id", tournamentID),
		slog.Int("round", roundNumber),
		slog.Int("groups", len(created)))

	s.hub.BroadcastToRoom(tournamentRoom(tournamentID), grouping.Event{
		Type: grouping.EventRoundConfigured,
		Payload: map[string]interface{}{
			"tournament_id": tournamentID,
			"round":         roundNumber,
			"groups":        len(created),
		},
	})
	return created, nil
}

// roundPool возвращает пул команд раунда: для первого раунда это
// подтверждённые регистрации, для последующих — отбор предыдущего раунда.
func (s *groupService) roundPool(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, roundNumber int) ([]models.Registration, error) {
	if roundNumber == 1 {
		return s.regRepo.ListConfirmedByTournament(ctx, exec, t.ID)
	}
	selected, ok := t.SelectedTeams[roundNumber-1]
	if !ok || len(selected) == 0 {
		return nil, ErrNoTeamsForRound
	}
	return s.regRepo.ListByIDs(ctx, exec, selected)
}

func (s *groupService) upsertRoundConfig(t *models.Tournament, cfg models.RoundConfig) {
	for i := range t.Rounds {
		if t.Rounds[i].Round == cfg.Round {
			t.Rounds[i] = cfg
			return
		}
	}
	t.Rounds = append(t.Rounds, cfg)
}

func (s *groupService) GetGroup(ctx context.Context, groupID int) (*models.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, nil, groupID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	teams, err := s.groupRepo.ListTeams(ctx, nil, groupID)
	if err != nil {
		return nil, err
	}
	group.Teams = teams

	matches, err := s.matchRepo.ListByGroup(ctx, nil, groupID)
	if err != nil {
		return nil, err
	}
	names := teamNamesByRegistration(teams)
	for _, m := range matches {
		scores, err := s.scoreRepo.ListByMatch(ctx, nil, m.ID)
		if err != nil {
			return nil, err
		}
		for i := range scores {
			scores[i].TeamName = names[scores[i].RegistrationID]
		}
		m.Scores = scores
		group.Matches = append(group.Matches, *m)
	}
	return group, nil
}

func (s *groupService) GroupStandings(ctx context.Context, groupID int) ([]grouping.Standing, error) {
	if _, err := s.groupRepo.GetByID(ctx, nil, groupID); err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	teams, err := s.groupRepo.ListTeams(ctx, nil, groupID)
	if err != nil {
		return nil, err
	}
	scores, err := s.scoreRepo.ListByGroup(ctx, nil, groupID)
	if err != nil {
		return nil, err
	}
	return grouping.ComputeStandings(teams, scores), nil
}

func teamNamesByRegistration(regs []models.Registration) map[int]string {
	names := make(map[int]string, len(regs))
	for _, r := range regs {
		names[r.ID] = r.TeamName
	}
	return names
}

func tournamentRoom(tournamentID int) string {
	return fmt.Sprintf("tournament_%d", tournamentID)
}
