package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/scrimverse-engine/grouping"
	"github.com/Dosada05/scrimverse-engine/models"
	"github.com/Dosada05/scrimverse-engine/repositories"
	"github.com/google/uuid"
)

type RoomDetailsInput struct {
	RoomID     string `json:"room_id"`
	RoomSecret string `json:"room_secret"`
}

// ScoreInput — одна строка счёта от оператора. Позиционные очки задаются
// либо занятым местом (Placement, конвертируется по таблице), либо напрямую.
type ScoreInput struct {
	RegistrationID int  `json:"team_id"`
	Wins           int  `json:"wins"`
	Placement      *int `json:"placement,omitempty"`
	PositionPoints *int `json:"position_points,omitempty"`
	KillPoints     int  `json:"kill_points"`
}

type MatchService interface {
	UpdateRoomDetails(ctx context.Context, matchID, hostID int, input RoomDetailsInput) (*models.Match, error)
	StartMatch(ctx context.Context, matchID, hostID int) (*models.Match, error)
	EndMatch(ctx context.Context, matchID, hostID int) (*models.Match, error)
	// CancelMatch откатывает live-матч обратно в ожидание, пока не истекло
	// окно отмены и нет ни одного счёта.
	CancelMatch(ctx context.Context, matchID, hostID int) (*models.Match, error)
	SubmitScores(ctx context.Context, matchID, hostID int, entries []ScoreInput) ([]models.MatchScore, error)
}

type matchService struct {
	db        *sql.DB
	tournRepo repositories.TournamentRepository
	regRepo   repositories.RegistrationRepository
	groupRepo repositories.GroupRepository
	matchRepo repositories.MatchRepository
	scoreRepo repositories.ScoreRepository
	hub       *grouping.Hub
	logger    *slog.Logger
	clock     Clock
	policy    models.MatchPolicy
}

func NewMatchService(
	db *sql.DB,
	tournRepo repositories.TournamentRepository,
	regRepo repositories.RegistrationRepository,
	groupRepo repositories.GroupRepository,
	matchRepo repositories.MatchRepository,
	scoreRepo repositories.ScoreRepository,
	hub *grouping.Hub,
	logger *slog.Logger,
	clock Clock,
	policy models.MatchPolicy,
) MatchService {
	return &matchService{
		db:        db,
		tournRepo: tournRepo,
		regRepo:   regRepo,
		groupRepo: groupRepo,
		matchRepo: matchRepo,
		scoreRepo: scoreRepo,
		hub:       hub,
		logger:    logger,
		clock:     clock,
		policy:    policy,
	}
}

// lockMatchContext резолвит матч → группа → турнир и берёт блокировку строки
// турнира. Любая операция над матчем проходит через эту цепочку.
func (s *matchService) lockMatchContext(ctx context.Context, tx *sql.Tx, matchID, hostID int) (*models.Match, *models.Group, *models.Tournament, error) {
	match, err := s.matchRepo.GetByID(ctx, tx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, nil, nil, ErrMatchNotFound
		}
		return nil, nil, nil, err
	}
	group, err := s.groupRepo.GetByID(ctx, tx, match.GroupID)
	if err != nil {
		return nil, nil, nil, err
	}
	t, err := s.tournRepo.LockByID(ctx, tx, group.TournamentID)
	if err != nil {
		return nil, nil, nil, err
	}
	if t.HostID != hostID {
		return nil, nil, nil, ErrForbiddenOperation
	}
	// Перечитываем матч после взятия блокировки: конкурентный вызов мог
	// изменить его до того, как мы сериализовались.
	match, err = s.matchRepo.GetByID(ctx, tx, matchID)
	if err != nil {
		return nil, nil, nil, err
	}
	return match, group, t, nil
}

func (s *matchService) UpdateRoomDetails(ctx context.Context, matchID, hostID int, input RoomDetailsInput) (*models.Match, error) {
	if input.RoomID == "" {
		return nil, fmt.Errorf("%w: room id is required", ErrValidationFailed)
	}
	secret := input.RoomSecret
	if secret == "" {
		secret = uuid.NewString()
	}

	var updated *models.Match
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		match, _, _, err := s.lockMatchContext(ctx, tx, matchID, hostID)
		if err != nil {
			return err
		}
		if !match.CanEditRoomDetails() {
			return fmt.Errorf("%w: room details are locked after start", ErrInvalidTransition)
		}
		if err := s.matchRepo.UpdateRoomDetails(ctx, tx, matchID, input.RoomID, secret); err != nil {
			return err
		}
		match.RoomID = input.RoomID
		match.RoomSecret = secret
		updated = match
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *matchService) StartMatch(ctx context.Context, matchID, hostID int) (*models.Match, error) {
	var started *models.Match
	var tournamentID int

	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		match, group, t, err := s.lockMatchContext(ctx, tx, matchID, hostID)
		if err != nil {
			return err
		}
		tournamentID = t.ID

		// Гейт по числу участников смотрит на весь турнир, а не на группу:
		// матч нельзя стартовать, пока подтверждённых команд меньше двух.
		confirmed, err := s.regRepo.CountConfirmed(ctx, tx, t.ID)
		if err != nil {
			return err
		}

		var prev *models.Match
		prevScored := false
		if match.MatchNumber > 1 {
			prev, err = s.matchRepo.GetByGroupAndNumber(ctx, tx, group.ID, match.MatchNumber-1)
			if err != nil && !errors.Is(err, repositories.ErrMatchNotFound) {
				return err
			}
			if prev != nil {
				count, err := s.scoreRepo.CountByMatch(ctx, tx, prev.ID)
				if err != nil {
					return err
				}
				prevScored = count > 0
			}
		}

		if err := match.CanStart(prev, prevScored, confirmed); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}

		now := s.clock.Now()
		if err := s.matchRepo.UpdateStatus(ctx, tx, matchID, models.MatchLive, &now, nil); err != nil {
			return err
		}
		if group.Status == models.GroupWaiting {
			if err := s.groupRepo.UpdateStatus(ctx, tx, group.ID, models.GroupOngoing); err != nil {
				return err
			}
		}

		match.Status = models.MatchLive
		match.StartedAt = &now
		started = match
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.hub.BroadcastToRoom(tournamentRoom(tournamentID), grouping.Event{
		Type:    grouping.EventMatchStarted,
		Payload: started,
	})
	return started, nil
}

func (s *matchService) EndMatch(ctx context.Context, matchID, hostID int) (*models.Match, error) {
	var ended *models.Match
	var tournamentID int

	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		match, group, t, err := s.lockMatchContext(ctx, tx, matchID, hostID)
		if err != nil {
			return err
		}
		tournamentID = t.ID

		teams, err := s.groupRepo.ListTeams(ctx, tx, group.ID)
		if err != nil {
			return err
		}
		scoreCount, err := s.scoreRepo.CountByMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if err := match.CanEnd(now, s.policy, len(teams)-scoreCount); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}

		if err := s.matchRepo.UpdateStatus(ctx, tx, matchID, models.MatchCompleted, nil, &now); err != nil {
			return err
		}
		match.Status = models.MatchCompleted
		match.EndedAt = &now

		// Для head-to-head победитель матча определяется по очкам сразу.
		if group.IsHeadToHead() || len(teams) == 2 {
			scores, err := s.scoreRepo.ListByMatch(ctx, tx, matchID)
			if err != nil {
				return err
			}
			if winnerID := headToHeadWinner(scores); winnerID != nil {
				if err := s.matchRepo.SetWinner(ctx, tx, matchID, winnerID); err != nil {
					return err
				}
				match.WinnerID = winnerID
			}
		}

		if err := s.completeGroupIfFinished(ctx, tx, group, teams); err != nil {
			return err
		}

		ended = match
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "match ended",
		slog.Int("match_id", matchID),
		slog.Int("tournament_id", tournamentID))

	s.hub.BroadcastToRoom(tournamentRoom(tournamentID), grouping.Event{
		Type:    grouping.EventMatchEnded,
		Payload: ended,
	})
	return ended, nil
}

// completeGroupIfFinished закрывает группу, когда все её матчи завершены,
// и фиксирует победителя группы по текущим standings.
func (s *matchService) completeGroupIfFinished(ctx context.Context, tx *sql.Tx, group *models.Group, teams []models.Registration) error {
	incomplete, err := s.matchRepo.CountIncompleteByGroup(ctx, tx, group.ID)
	if err != nil {
		return err
	}
	if incomplete > 0 {
		return nil
	}

	if err := s.groupRepo.UpdateStatus(ctx, tx, group.ID, models.GroupCompleted); err != nil {
		return err
	}
	scores, err := s.scoreRepo.ListByGroup(ctx, tx, group.ID)
	if err != nil {
		return err
	}
	standings := grouping.ComputeStandings(teams, scores)
	if len(standings) > 0 {
		return s.groupRepo.SetWinner(ctx, tx, group.ID, standings[0].TeamID)
	}
	return nil
}

func (s *matchService) CancelMatch(ctx context.Context, matchID, hostID int) (*models.Match, error) {
	var cancelled *models.Match
	var tournamentID int

	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		match, _, t, err := s.lockMatchContext(ctx, tx, matchID, hostID)
		if err != nil {
			return err
		}
		tournamentID = t.ID

		scoreCount, err := s.scoreRepo.CountByMatch(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if err := match.CanCancel(s.clock.Now(), s.policy, scoreCount > 0); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}

		if err := s.matchRepo.ResetToWaiting(ctx, tx, matchID); err != nil {
			return err
		}
		match.Status = models.MatchWaiting
		match.StartedAt = nil
		cancelled = match
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.hub.BroadcastToRoom(tournamentRoom(tournamentID), grouping.Event{
		Type:    grouping.EventMatchCancelled,
		Payload: cancelled,
	})
	return cancelled, nil
}

func (s *matchService) SubmitScores(ctx context.Context, matchID, hostID int, entries []ScoreInput) ([]models.MatchScore, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: at least one score entry is required", ErrValidationFailed)
	}

	var saved []models.MatchScore
	var tournamentID, roundNumber int

	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		match, group, t, err := s.lockMatchContext(ctx, tx, matchID, hostID)
		if err != nil {
			return err
		}
		tournamentID = t.ID
		roundNumber = group.RoundNumber

		nextStarted := false
		next, err := s.matchRepo.GetByGroupAndNumber(ctx, tx, group.ID, match.MatchNumber+1)
		if err != nil && !errors.Is(err, repositories.ErrMatchNotFound) {
			return err
		}
		if next != nil && next.Status != models.MatchWaiting {
			nextStarted = true
		}

		if err := match.CanEditScores(s.clock.Now(), s.policy, nextStarted); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}

		teams, err := s.groupRepo.ListTeams(ctx, tx, group.ID)
		if err != nil {
			return err
		}
		members := make(map[int]string, len(teams))
		for _, team := range teams {
			members[team.ID] = team.TeamName
		}

		saved = make([]models.MatchScore, 0, len(entries))
		for _, entry := range entries {
			name, ok := members[entry.RegistrationID]
			if !ok {
				return fmt.Errorf("%w: team %d is not in this group", ErrValidationFailed, entry.RegistrationID)
			}
			if entry.Wins < 0 || entry.KillPoints < 0 {
				return fmt.Errorf("%w: negative score values", ErrValidationFailed)
			}

			score := models.MatchScore{
				MatchID:        matchID,
				RegistrationID: entry.RegistrationID,
				Wins:           entry.Wins,
				KillPoints:     entry.KillPoints,
			}
			switch {
			case entry.PositionPoints != nil:
				if *entry.PositionPoints < 0 {
					return fmt.Errorf("%w: negative position points", ErrValidationFailed)
				}
				score.PositionPoints = *entry.PositionPoints
			case entry.Placement != nil:
				if *entry.Placement < 1 {
					return fmt.Errorf("%w: placement must be positive", ErrValidationFailed)
				}
				score.PositionPoints = models.PlacementPoints(*entry.Placement)
			}
			score.Recalculate()

			if err := s.scoreRepo.Upsert(ctx, tx, &score); err != nil {
				return err
			}
			score.TeamName = name
			saved = append(saved, score)
		}

		return s.scoreRepo.RecomputeRoundScores(ctx, tx, t.ID, group.RoundNumber)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "scores submitted",
		slog.Int("match_id", matchID),
		slog.Int("tournament_id", tournamentID),
		slog.Int("round", roundNumber),
		slog.Int("entries", len(saved)))

	s.hub.BroadcastToRoom(tournamentRoom(tournamentID), grouping.Event{
		Type:    grouping.EventScoresSubmitted,
		Payload: saved,
	})
	return saved, nil
}

// headToHeadWinner возвращает команду с большим счётом или nil при ничьей.
func headToHeadWinner(scores []models.MatchScore) *int {
	if len(scores) != 2 {
		return nil
	}
	a, b := scores[0], scores[1]
	switch {
	case a.TotalPoints > b.TotalPoints:
		return &a.RegistrationID
	case b.TotalPoints > a.TotalPoints:
		return &b.RegistrationID
	case a.Wins > b.Wins:
		return &a.RegistrationID
	case b.Wins > a.Wins:
		return &b.RegistrationID
	}
	return nil
}
