package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Dosada05/scrimverse-engine/grouping"
	"github.com/Dosada05/scrimverse-engine/models"
	"github.com/Dosada05/scrimverse-engine/repositories"
	"golang.org/x/sync/errgroup"
)

const (
	SelectionActionSelect    = "select"
	SelectionActionEliminate = "eliminate"
)

// LeaderboardRebuilder — то, что раунд-сервис дёргает после завершения
// турнира. Пересборка идёт вне транзакции завершения: её провал не
// откатывает сам турнир.
type LeaderboardRebuilder interface {
	RebuildAll(ctx context.Context) error
}

type GroupResult struct {
	Group     *models.Group       `json:"group"`
	Standings []grouping.Standing `json:"standings"`
}

type RoundResultsView struct {
	TournamentID int           `json:"tournament_id"`
	Round        int           `json:"round"`
	Status       string        `json:"status"`
	Groups       []GroupResult `json:"groups"`
	Qualified    []int         `json:"qualified_team_ids"`
	Eliminated   []int         `json:"eliminated_team_ids"`
	ByeTeamID    *int          `json:"bye_team_id,omitempty"`
	WinnerID     *int          `json:"winner_team_id,omitempty"`
}

type RoundService interface {
	// SelectTeams записывает отбор текущего раунда. Действие select заменяет
	// выбор целиком, eliminate убирает команды из уже выбранных.
	SelectTeams(ctx context.Context, tournamentID, hostID int, action string, teamIDs []int) ([]int, error)
	// EndRound закрывает текущий раунд. Обычный раунд требует ровно столько
	// отобранных команд, сколько квалификационных мест, и передвигает турнир
	// на следующий раунд. Финальный раунд требует заранее зафиксированного
	// победителя и завершает турнир целиком.
	EndRound(ctx context.Context, tournamentID, hostID int) (*models.Tournament, error)
	// SelectWinner фиксирует победителя финального раунда. Раунд и турнир
	// после этого закрывает EndRound.
	SelectWinner(ctx context.Context, tournamentID, hostID, winnerTeamID int) (*models.Tournament, error)
	// EndTournament — досрочное завершение по решению хоста.
	EndTournament(ctx context.Context, tournamentID, hostID int) (*models.Tournament, error)
	CancelTournament(ctx context.Context, tournamentID, hostID int) (*models.Tournament, error)
	RoundResults(ctx context.Context, tournamentID, roundNumber int) (*RoundResultsView, error)
}

type roundService struct {
	db          *sql.DB
	tournRepo   repositories.TournamentRepository
	regRepo     repositories.RegistrationRepository
	groupRepo   repositories.GroupRepository
	scoreRepo   repositories.ScoreRepository
	hub         *grouping.Hub
	logger      *slog.Logger
	leaderboard LeaderboardRebuilder
}

func NewRoundService(
	db *sql.DB,
	tournRepo repositories.TournamentRepository,
	regRepo repositories.RegistrationRepository,
	groupRepo repositories.GroupRepository,
	scoreRepo repositories.ScoreRepository,
	hub *grouping.Hub,
	logger *slog.Logger,
	leaderboard LeaderboardRebuilder,
) RoundService {
	return &roundService{
		db:          db,
		tournRepo:   tournRepo,
		regRepo:     regRepo,
		groupRepo:   groupRepo,
		scoreRepo:   scoreRepo,
		hub:         hub,
		logger:      logger,
		leaderboard: leaderboard,
	}
}

// lockOngoing берёт блокировку турнира и проверяет права хоста и статус.
func (s *roundService) lockOngoing(ctx context.Context, tx *sql.Tx, tournamentID, hostID int) (*models.Tournament, error) {
	t, err := s.tournRepo.LockByID(ctx, tx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	if t.HostID != hostID {
		return nil, ErrForbiddenOperation
	}
	if t.Status != models.StatusOngoing {
		return nil, ErrTournamentNotOngoing
	}
	return t, nil
}

func (s *roundService) SelectTeams(ctx context.Context, tournamentID, hostID int, action string, teamIDs []int) ([]int, error) {
	var selection []int

	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := s.lockOngoing(ctx, tx, tournamentID, hostID)
		if err != nil {
			return err
		}
		round := t.CurrentRound
		state, ok := t.RoundStatus[round]
		if round < 1 || !ok || state.Status != models.RoundOngoing {
			return ErrRoundNotConfigured
		}

		groups, err := s.groupRepo.ListByRound(ctx, tx, tournamentID, round)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			return ErrRoundNotConfigured
		}
		limit := 0
		participants := make(map[int]bool)
		for _, g := range groups {
			limit += g.QualifyingTeams
			teams, err := s.groupRepo.ListTeams(ctx, tx, g.ID)
			if err != nil {
				return err
			}
			for _, team := range teams {
				participants[team.ID] = true
			}
		}
		if limit == 0 {
			// Финальный раунд: квалификационных мест нет, отбор ограничен
			// размером самого раунда.
			if rc := t.RoundByNumber(round); rc != nil && rc.MaxTeams > 0 {
				limit = rc.MaxTeams
			} else {
				limit = len(participants)
			}
		}

		if t.SelectedTeams == nil {
			t.SelectedTeams = models.SelectedTeamsMap{}
		}

		switch action {
		case SelectionActionSelect:
			seen := make(map[int]bool, len(teamIDs))
			next := make([]int, 0, len(teamIDs))
			for _, id := range teamIDs {
				if !participants[id] {
					return fmt.Errorf("%w: team %d is not in this round", ErrValidationFailed, id)
				}
				if !seen[id] {
					seen[id] = true
					next = append(next, id)
				}
			}
			if len(next) > limit {
				return fmt.Errorf("%w: %d selected, %d spots", ErrTooManyTeams, len(next), limit)
			}
			t.SelectedTeams[round] = next

		case SelectionActionEliminate:
			drop := make(map[int]bool, len(teamIDs))
			for _, id := range teamIDs {
				drop[id] = true
			}
			kept := make([]int, 0, len(t.SelectedTeams[round]))
			for _, id := range t.SelectedTeams[round] {
				if !drop[id] {
					kept = append(kept, id)
				}
			}
			t.SelectedTeams[round] = kept

		default:
			return ErrInvalidSelectionAction
		}

		selection = t.SelectedTeams[round]
		return s.tournRepo.UpdateRoundState(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	return selection, nil
}

func (s *roundService) EndRound(ctx context.Context, tournamentID, hostID int) (*models.Tournament, error) {
	var result *models.Tournament
	var finishedRound int
	var finalWinnerID *int

	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := s.lockOngoing(ctx, tx, tournamentID, hostID)
		if err != nil {
			return err
		}
		round := t.CurrentRound
		state, ok := t.RoundStatus[round]
		if round < 1 || !ok || state.Status != models.RoundOngoing {
			return ErrRoundNotConfigured
		}

		incomplete, err := s.groupRepo.CountIncompleteByRound(ctx, tx, tournamentID, round)
		if err != nil {
			return err
		}
		if incomplete > 0 {
			return fmt.Errorf("%w: %d group(s) still running", ErrRoundNotComplete, incomplete)
		}

		groups, err := s.groupRepo.ListByRound(ctx, tx, tournamentID, round)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			return ErrRoundNotConfigured
		}
		expected := 0
		for _, g := range groups {
			expected += g.QualifyingTeams
		}

		if expected == 0 {
			// Финальный раунд: вместо отбора требуется зафиксированный
			// победитель, после чего турнир завершается целиком.
			winnerID, ok := t.Winners[round]
			if !ok {
				return fmt.Errorf("%w: winner must be selected before ending the final round", ErrWinnerNotSelected)
			}
			state.Status = models.RoundCompleted
			t.RoundStatus[round] = state
			t.CurrentRound = 0
			t.Status = models.StatusCompleted

			finishedRound = round
			finalWinnerID = &winnerID
			result = t
			return s.tournRepo.UpdateRoundState(ctx, tx, t)
		}

		selected := t.SelectedTeams[round]
		if len(selected) != expected {
			return fmt.Errorf("%w: exactly %d team(s) required, %d selected",
				ErrSelectionIncomplete, expected, len(selected))
		}

		// Bye-команда проходит дальше автоматически, поверх отобранных.
		advancing := selected
		if state.ByeTeamID != nil {
			advancing = append([]int{*state.ByeTeamID}, selected...)
		}
		t.SelectedTeams[round] = advancing

		state.Status = models.RoundCompleted
		t.RoundStatus[round] = state

		// Следующий раунд сразу переходит в ongoing с пустым отбором:
		// группы для него хост создаёт отдельным configure.
		next := round + 1
		t.CurrentRound = next
		t.RoundStatus[next] = models.RoundState{Status: models.RoundOngoing}

		finishedRound = round
		result = t
		return s.tournRepo.UpdateRoundState(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}

	if finalWinnerID != nil {
		s.logger.InfoContext(ctx, "tournament completed",
			slog.Int("tournament_id", tournamentID),
			slog.Int("round", finishedRound),
			slog.Int("winner_team_id", *finalWinnerID))

		s.hub.BroadcastToRoom(tournamentRoom(tournamentID), grouping.Event{
			Type: grouping.EventRoundCompleted,
			Payload: map[string]interface{}{
				"tournament_id":  tournamentID,
				"round":          finishedRound,
				"winner_team_id": *finalWinnerID,
			},
		})
		s.rebuildLeaderboardAsync(tournamentID)
		return result, nil
	}

	s.logger.InfoContext(ctx, "round completed",
		slog.Int("tournament_id", tournamentID),
		slog.Int("round", finishedRound),
		slog.Int("advancing", len(result.SelectedTeams[finishedRound])))

	s.hub.BroadcastToRoom(tournamentRoom(tournamentID), grouping.Event{
		Type: grouping.EventRoundCompleted,
		Payload: map[string]interface{}{
			"tournament_id": tournamentID,
			"round":         finishedRound,
			"advancing":     result.SelectedTeams[finishedRound],
		},
	})
	return result, nil
}

func (s *roundService) SelectWinner(ctx context.Context, tournamentID, hostID, winnerTeamID int) (*models.Tournament, error) {
	var result *models.Tournament
	var finalRound int

	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := s.lockOngoing(ctx, tx, tournamentID, hostID)
		if err != nil {
			return err
		}
		round := t.CurrentRound
		state, ok := t.RoundStatus[round]
		if round < 1 || !ok || state.Status != models.RoundOngoing {
			return ErrRoundNotConfigured
		}

		groups, err := s.groupRepo.ListByRound(ctx, tx, tournamentID, round)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			return ErrRoundNotConfigured
		}
		qualifying := 0
		for _, g := range groups {
			qualifying += g.QualifyingTeams
		}
		if qualifying != 0 {
			return ErrNotFinalRound
		}

		incomplete, err := s.groupRepo.CountIncompleteByRound(ctx, tx, tournamentID, round)
		if err != nil {
			return err
		}
		if incomplete > 0 {
			return fmt.Errorf("%w: %d group(s) still running", ErrRoundNotComplete, incomplete)
		}

		participants, err := s.roundParticipants(ctx, tx, t, round)
		if err != nil {
			return err
		}
		if len(participants) < 2 {
			return ErrNotEnoughParticipants
		}
		if !containsInt(participants, winnerTeamID) {
			return ErrWinnerNotParticipant
		}

		if t.Winners == nil {
			t.Winners = models.WinnersMap{}
		}
		// Фиксируем только победителя. Сам раунд и турнир закрывает
		// последующий EndRound.
		t.Winners[round] = winnerTeamID

		finalRound = round
		result = t
		return s.tournRepo.UpdateRoundState(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament winner selected",
		slog.Int("tournament_id", tournamentID),
		slog.Int("round", finalRound),
		slog.Int("winner_team_id", winnerTeamID))

	s.hub.BroadcastToRoom(tournamentRoom(tournamentID), grouping.Event{
		Type: grouping.EventWinnerSelected,
		Payload: map[string]interface{}{
			"tournament_id":  tournamentID,
			"round":          finalRound,
			"winner_team_id": winnerTeamID,
		},
	})
	return result, nil
}

func (s *roundService) EndTournament(ctx context.Context, tournamentID, hostID int) (*models.Tournament, error) {
	var result *models.Tournament

	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := s.lockOngoing(ctx, tx, tournamentID, hostID)
		if err != nil {
			return err
		}
		// Хост может закрыть турнир досрочно: незавершённые раунды остаются
		// в своём состоянии, победитель не фиксируется.
		t.Status = models.StatusCompleted
		t.CurrentRound = 0
		result = t
		return s.tournRepo.UpdateRoundState(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament ended by host", slog.Int("tournament_id", tournamentID))
	s.rebuildLeaderboardAsync(tournamentID)
	return result, nil
}

func (s *roundService) CancelTournament(ctx context.Context, tournamentID, hostID int) (*models.Tournament, error) {
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
		if t.Status == models.StatusCompleted || t.Status == models.StatusCancelled {
			return fmt.Errorf("%w: tournament is already %s", ErrInvalidTransition, t.Status)
		}
		t.Status = models.StatusCancelled
		t.CurrentRound = 0
		result = t
		return s.tournRepo.UpdateRoundState(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *roundService) roundParticipants(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament, round int) ([]int, error) {
	if round == 1 {
		regs, err := s.regRepo.ListConfirmedByTournament(ctx, exec, t.ID)
		if err != nil {
			return nil, err
		}
		ids := make([]int, len(regs))
		for i, r := range regs {
			ids[i] = r.ID
		}
		return ids, nil
	}
	return t.SelectedTeams[round-1], nil
}

func (s *roundService) RoundResults(ctx context.Context, tournamentID, roundNumber int) (*RoundResultsView, error) {
	t, err := s.tournRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	state, ok := t.RoundStatus[roundNumber]
	if !ok {
		return nil, ErrRoundNotConfigured
	}

	groups, err := s.groupRepo.ListByRound(ctx, nil, tournamentID, roundNumber)
	if err != nil {
		return nil, err
	}

	results := make([]GroupResult, len(groups))
	participants := make(map[int]bool)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			teams, err := s.groupRepo.ListTeams(gctx, nil, group.ID)
			if err != nil {
				return err
			}
			scores, err := s.scoreRepo.ListByGroup(gctx, nil, group.ID)
			if err != nil {
				return err
			}
			group.Teams = teams
			results[i] = GroupResult{
				Group:     group,
				Standings: grouping.ComputeStandings(teams, scores),
			}
			mu.Lock()
			for _, team := range teams {
				participants[team.ID] = true
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	qualified := t.SelectedTeams[roundNumber]
	qualifiedSet := make(map[int]bool, len(qualified))
	for _, id := range qualified {
		qualifiedSet[id] = true
	}
	eliminated := []int{}
	if state.Status == models.RoundCompleted {
		for id := range participants {
			if !qualifiedSet[id] {
				eliminated = append(eliminated, id)
			}
		}
		sort.Ints(eliminated)
	}

	view := &RoundResultsView{
		TournamentID: tournamentID,
		Round:        roundNumber,
		Status:       string(state.Status),
		Groups:       results,
		Qualified:    qualified,
		Eliminated:   eliminated,
		ByeTeamID:    state.ByeTeamID,
	}
	if winnerID, ok := t.Winners[roundNumber]; ok {
		view.WinnerID = &winnerID
	}
	return view, nil
}

// rebuildLeaderboardAsync запускает пересборку лидерборда в фоне. Запрос
// оператора не ждёт пересчёта, ошибка уходит в лог.
func (s *roundService) rebuildLeaderboardAsync(tournamentID int) {
	if s.leaderboard == nil {
		return
	}
	go func() {
		ctx := context.Background()
		if err := s.leaderboard.RebuildAll(ctx); err != nil {
			s.logger.ErrorContext(ctx, "leaderboard rebuild failed",
				slog.Int("tournament_id", tournamentID),
				slog.Any("error", err))
		}
	}()
}

func containsInt(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
