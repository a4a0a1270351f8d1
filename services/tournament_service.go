package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/scrimverse-engine/models"
	"github.com/Dosada05/scrimverse-engine/repositories"
)

type CreateTournamentInput struct {
	Title           string           `json:"title"`
	GameName        string           `json:"game_name"`
	EventMode       models.EventMode `json:"event_mode"`
	MaxParticipants int              `json:"max_participants"`
	MaxMatches      int              `json:"max_matches"`
}

type TournamentService interface {
	Create(ctx context.Context, hostID int, input CreateTournamentInput, t *models.Tournament) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
	// Start переводит турнир в ongoing и открывает первый раунд.
	Start(ctx context.Context, tournamentID, hostID int) (*models.Tournament, error)
	// RunStatusUpdates — проход планировщика: переводит статусы по датам.
	RunStatusUpdates(ctx context.Context) error
}

type tournamentService struct {
	db          *sql.DB
	tournRepo   repositories.TournamentRepository
	logger      *slog.Logger
	clock       Clock
	leaderboard LeaderboardRebuilder
}

func NewTournamentService(
	db *sql.DB,
	tournRepo repositories.TournamentRepository,
	logger *slog.Logger,
	clock Clock,
	leaderboard LeaderboardRebuilder,
) TournamentService {
	return &tournamentService{
		db:          db,
		tournRepo:   tournRepo,
		logger:      logger,
		clock:       clock,
		leaderboard: leaderboard,
	}
}

func (s *tournamentService) Create(ctx context.Context, hostID int, input CreateTournamentInput, t *models.Tournament) (*models.Tournament, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidationFailed)
	}
	if input.EventMode != models.ModeTournament && input.EventMode != models.ModeScrim {
		return nil, fmt.Errorf("%w: unknown event mode %q", ErrValidationFailed, input.EventMode)
	}
	if input.MaxParticipants < 2 {
		return nil, fmt.Errorf("%w: at least two participants required", ErrValidationFailed)
	}
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return nil, fmt.Errorf("%w: start and end dates are required", ErrValidationFailed)
	}
	if !t.StartDate.Before(t.EndDate) {
		return nil, fmt.Errorf("%w: start date must be before end date", ErrValidationFailed)
	}

	t.HostID = hostID
	t.Title = input.Title
	t.GameName = input.GameName
	t.EventMode = input.EventMode
	t.MaxParticipants = input.MaxParticipants
	t.MaxMatches = input.MaxMatches
	t.Status = models.StatusUpcoming
	t.CurrentRound = 0

	if err := s.tournRepo.Create(ctx, t); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, fmt.Errorf("%w: title already in use", ErrValidationFailed)
		}
		return nil, err
	}
	return t, nil
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *tournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	return s.tournRepo.List(ctx, filter)
}

func (s *tournamentService) Start(ctx context.Context, tournamentID, hostID int) (*models.Tournament, error) {
	var result *models.Tournament

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
		if t.Status != models.StatusUpcoming {
			return fmt.Errorf("%w: tournament is %s", ErrInvalidTransition, t.Status)
		}

		t.Status = models.StatusOngoing
		t.CurrentRound = 1
		if t.RoundStatus == nil {
			t.RoundStatus = models.RoundStateMap{}
		}
		t.RoundStatus[1] = models.RoundState{Status: models.RoundOngoing}
		result = t
		return s.tournRepo.UpdateRoundState(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament started", slog.Int("tournament_id", tournamentID))
	return result, nil
}

// RunStatusUpdates вызывается планировщиком. Каждый турнир обрабатывается
// в своей транзакции, чтобы сбой одного не блокировал остальные.
func (s *tournamentService) RunStatusUpdates(ctx context.Context) error {
	now := s.clock.Now()
	due, err := s.tournRepo.GetTournamentsForAutoStatusUpdate(ctx, nil, now)
	if err != nil {
		return fmt.Errorf("failed to fetch tournaments for status update: %w", err)
	}

	completedAny := false
	for _, t := range due {
		err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
			locked, err := s.tournRepo.LockByID(ctx, tx, t.ID)
			if err != nil {
				return err
			}
			switch {
			case locked.Status == models.StatusUpcoming && !locked.StartDate.After(now):
				locked.Status = models.StatusOngoing
				locked.CurrentRound = 1
				if locked.RoundStatus == nil {
					locked.RoundStatus = models.RoundStateMap{}
				}
				if _, ok := locked.RoundStatus[1]; !ok {
					locked.RoundStatus[1] = models.RoundState{Status: models.RoundOngoing}
				}
				return s.tournRepo.UpdateRoundState(ctx, tx, locked)
			case locked.Status == models.StatusOngoing && !locked.EndDate.After(now):
				locked.Status = models.StatusCompleted
				locked.CurrentRound = 0
				completedAny = true
				return s.tournRepo.UpdateRoundState(ctx, tx, locked)
			}
			return nil
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "auto status update failed",
				slog.Int("tournament_id", t.ID),
				slog.Any("error", err))
		} else {
			s.logger.InfoContext(ctx, "tournament status updated by schedule",
				slog.Int("tournament_id", t.ID))
		}
	}

	if completedAny && s.leaderboard != nil {
		if err := s.leaderboard.RebuildAll(ctx); err != nil {
			s.logger.ErrorContext(ctx, "leaderboard rebuild after auto-complete failed", slog.Any("error", err))
		}
	}
	return nil
}
