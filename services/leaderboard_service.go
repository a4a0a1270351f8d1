package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Dosada05/scrimverse-engine/grouping"
	"github.com/Dosada05/scrimverse-engine/models"
	"github.com/Dosada05/scrimverse-engine/repositories"
	"github.com/Dosada05/scrimverse-engine/storage"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	leaderboardCacheKey     = "leaderboard:all"
	leaderboardTeamCacheKey = "leaderboard:team:%d"
	leaderboardCacheTTL     = 5 * time.Minute
)

type LeaderboardView struct {
	Teams       []*models.TeamStatistics `json:"teams"`
	TotalTeams  int                      `json:"total_teams"`
	GeneratedAt time.Time                `json:"generated_at"`
}

type LeaderboardService interface {
	// RebuildAll пересобирает лидерборд с нуля по всем завершённым событиям.
	// Сбой на отдельной команде или турнире не валит пересборку целиком.
	RebuildAll(ctx context.Context) error
	GetLeaderboard(ctx context.Context, limit, offset int) (*LeaderboardView, error)
	GetTeam(ctx context.Context, teamID int) (*models.TeamStatistics, error)
}

type leaderboardService struct {
	db        *sql.DB
	tournRepo repositories.TournamentRepository
	regRepo   repositories.RegistrationRepository
	scoreRepo repositories.ScoreRepository
	statsRepo repositories.StatisticsRepository
	teamRepo  repositories.TeamRepository
	cache     *redis.Client
	uploader  storage.FileUploader
	hub       *grouping.Hub
	logger    *slog.Logger
	clock     Clock
}

func NewLeaderboardService(
	db *sql.DB,
	tournRepo repositories.TournamentRepository,
	regRepo repositories.RegistrationRepository,
	scoreRepo repositories.ScoreRepository,
	statsRepo repositories.StatisticsRepository,
	teamRepo repositories.TeamRepository,
	cache *redis.Client,
	uploader storage.FileUploader,
	hub *grouping.Hub,
	logger *slog.Logger,
	clock Clock,
) LeaderboardService {
	return &leaderboardService{
		db:        db,
		tournRepo: tournRepo,
		regRepo:   regRepo,
		scoreRepo: scoreRepo,
		statsRepo: statsRepo,
		teamRepo:  teamRepo,
		cache:     cache,
		uploader:  uploader,
		hub:       hub,
		logger:    logger,
		clock:     clock,
	}
}

func (s *leaderboardService) RebuildAll(ctx context.Context) error {
	completed, err := s.tournRepo.ListCompleted(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to list completed events: %w", err)
	}

	stats := make(map[int]*models.TeamStatistics)
	now := s.clock.Now()

	for _, t := range completed {
		if err := s.accumulateTournament(ctx, t, stats, now); err != nil {
			// Изоляция сбоев: битое событие пропускается, остальные считаются.
			s.logger.WarnContext(ctx, "skipping event in leaderboard rebuild",
				slog.Int("tournament_id", t.ID),
				slog.Any("error", err))
		}
	}

	all := make([]*models.TeamStatistics, 0, len(stats))
	for _, st := range stats {
		st.RecalculateTotals()
		all = append(all, st)
	}
	assignRanks(all)

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.statsRepo.ReplaceAll(ctx, tx, all)
	})
	if err != nil {
		return fmt.Errorf("failed to store leaderboard: %w", err)
	}

	s.invalidateCache(ctx)
	s.exportSnapshot(ctx, all, now)

	s.logger.InfoContext(ctx, "leaderboard rebuilt",
		slog.Int("events", len(completed)),
		slog.Int("teams", len(all)))

	if s.hub != nil {
		s.hub.BroadcastToRoom("leaderboard", grouping.Event{
			Type:    grouping.EventLeaderboard,
			Payload: map[string]interface{}{"teams": len(all), "generated_at": now},
		})
	}
	return nil
}

// accumulateTournament добавляет вклад одного завершённого события в stats.
func (s *leaderboardService) accumulateTournament(ctx context.Context, t *models.Tournament, stats map[int]*models.TeamStatistics, now time.Time) error {
	regs, err := s.regRepo.ListConfirmedByTournament(ctx, nil, t.ID)
	if err != nil {
		return err
	}
	teamByReg := make(map[int]*int, len(regs))
	for _, reg := range regs {
		teamByReg[reg.ID] = reg.TeamID
		// Участие считается по событиям: одна подтверждённая регистрация в
		// завершённом событии — плюс один, сколько бы матчей команда ни сыграла.
		if reg.TeamID != nil {
			ensureStats(stats, *reg.TeamID, now).MatchesPlayed++
		}
	}

	scores, err := s.scoreRepo.ListByTournament(ctx, nil, t.ID)
	if err != nil {
		return err
	}

	isScrim := t.IsScrim()
	for _, score := range scores {
		teamID, ok := teamByReg[score.RegistrationID]
		if !ok || teamID == nil {
			// Временные составы без постоянной команды в рейтинг не попадают.
			continue
		}
		st := ensureStats(stats, *teamID, now)
		if isScrim {
			st.ScrimPositionPoints += score.PositionPoints
			st.ScrimKillPoints += score.KillPoints
		} else {
			st.TournamentPositionPoints += score.PositionPoints
			st.TournamentKillPoints += score.KillPoints
		}
	}

	// Победа засчитывается команде, выигравшей финальный раунд.
	if winnerRegID, ok := t.Winners[t.FinalRoundNumber()]; ok {
		if teamID, found := teamByReg[winnerRegID]; found && teamID != nil {
			st := ensureStats(stats, *teamID, now)
			if isScrim {
				st.ScrimWins++
			} else {
				st.TournamentWins++
			}
		}
	}
	return nil
}

func ensureStats(stats map[int]*models.TeamStatistics, teamID int, now time.Time) *models.TeamStatistics {
	if st, ok := stats[teamID]; ok {
		return st
	}
	st := &models.TeamStatistics{TeamID: teamID, LastUpdated: now}
	stats[teamID] = st
	return st
}

// assignRanks выдаёт плотные ранги 1..N по трём независимым сортировкам:
// общий зачёт, турнирный и скримовый. Ничьи по очкам разбиваются по победам,
// затем по килл-поинтам; равные по всему команды упорядочиваются по ID, чтобы
// порядок не зависел от обхода map.
func assignRanks(all []*models.TeamStatistics) {
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].TournamentPoints() != all[j].TournamentPoints() {
			return all[i].TournamentPoints() > all[j].TournamentPoints()
		}
		if all[i].TournamentWins != all[j].TournamentWins {
			return all[i].TournamentWins > all[j].TournamentWins
		}
		if all[i].TournamentKillPoints != all[j].TournamentKillPoints {
			return all[i].TournamentKillPoints > all[j].TournamentKillPoints
		}
		return all[i].TeamID < all[j].TeamID
	})
	for i, st := range all {
		st.TournamentRank = i + 1
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].ScrimPoints() != all[j].ScrimPoints() {
			return all[i].ScrimPoints() > all[j].ScrimPoints()
		}
		if all[i].ScrimWins != all[j].ScrimWins {
			return all[i].ScrimWins > all[j].ScrimWins
		}
		if all[i].ScrimKillPoints != all[j].ScrimKillPoints {
			return all[i].ScrimKillPoints > all[j].ScrimKillPoints
		}
		return all[i].TeamID < all[j].TeamID
	})
	for i, st := range all {
		st.ScrimRank = i + 1
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].TotalPoints != all[j].TotalPoints {
			return all[i].TotalPoints > all[j].TotalPoints
		}
		winsI := all[i].TournamentWins + all[i].ScrimWins
		winsJ := all[j].TournamentWins + all[j].ScrimWins
		if winsI != winsJ {
			return winsI > winsJ
		}
		killsI := all[i].TournamentKillPoints + all[i].ScrimKillPoints
		killsJ := all[j].TournamentKillPoints + all[j].ScrimKillPoints
		if killsI != killsJ {
			return killsI > killsJ
		}
		return all[i].TeamID < all[j].TeamID
	})
	for i, st := range all {
		st.Rank = i + 1
	}
}

func (s *leaderboardService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, leaderboardCacheKey).Err(); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate leaderboard cache", slog.Any("error", err))
	}
	keys, err := s.cache.Keys(ctx, "leaderboard:team:*").Result()
	if err == nil && len(keys) > 0 {
		_ = s.cache.Del(ctx, keys...).Err()
	}
}

// exportSnapshot выгружает полный снимок лидерборда в объектное хранилище.
// Неудача выгрузки не считается ошибкой пересборки.
func (s *leaderboardService) exportSnapshot(ctx context.Context, all []*models.TeamStatistics, now time.Time) {
	if s.uploader == nil {
		return
	}
	payload, err := json.Marshal(LeaderboardView{
		Teams:       all,
		TotalTeams:  len(all),
		GeneratedAt: now,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to marshal leaderboard snapshot", slog.Any("error", err))
		return
	}
	key := fmt.Sprintf("leaderboards/%s-%s.json", now.UTC().Format("20060102T150405"), uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, "application/json", bytes.NewReader(payload))
	if err != nil {
		s.logger.WarnContext(ctx, "failed to export leaderboard snapshot", slog.Any("error", err))
		return
	}
	s.logger.InfoContext(ctx, "leaderboard snapshot exported", slog.String("location", result.Location))
}

func (s *leaderboardService) GetLeaderboard(ctx context.Context, limit, offset int) (*LeaderboardView, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	total := len(all)
	if offset > total {
		offset = total
	}
	page := all[offset:]
	if limit > 0 && limit < len(page) {
		page = page[:limit]
	}
	return &LeaderboardView{
		Teams:       page,
		TotalTeams:  total,
		GeneratedAt: s.clock.Now(),
	}, nil
}

func (s *leaderboardService) loadAll(ctx context.Context) ([]*models.TeamStatistics, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, leaderboardCacheKey).Bytes()
		if err == nil {
			var cached []*models.TeamStatistics
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "leaderboard cache read failed", slog.Any("error", err))
		}
	}

	all, err := s.statsRepo.List(ctx, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	if err := s.fillTeamNames(ctx, all); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(all); err == nil {
			if err := s.cache.Set(ctx, leaderboardCacheKey, raw, leaderboardCacheTTL).Err(); err != nil {
				s.logger.WarnContext(ctx, "leaderboard cache write failed", slog.Any("error", err))
			}
		}
	}
	return all, nil
}

func (s *leaderboardService) fillTeamNames(ctx context.Context, stats []*models.TeamStatistics) error {
	if len(stats) == 0 {
		return nil
	}
	ids := make([]int, len(stats))
	for i, st := range stats {
		ids[i] = st.TeamID
	}
	teams, err := s.teamRepo.ListByIDs(ctx, nil, ids)
	if err != nil {
		return err
	}
	names := make(map[int]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.Name
	}
	for _, st := range stats {
		st.TeamName = names[st.TeamID]
	}
	return nil
}

func (s *leaderboardService) GetTeam(ctx context.Context, teamID int) (*models.TeamStatistics, error) {
	cacheKey := fmt.Sprintf(leaderboardTeamCacheKey, teamID)
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var cached models.TeamStatistics
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	st, err := s.statsRepo.GetByTeamID(ctx, nil, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrStatisticsNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	if err := s.fillTeamNames(ctx, []*models.TeamStatistics{st}); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(st); err == nil {
			_ = s.cache.Set(ctx, cacheKey, raw, leaderboardCacheTTL).Err()
		}
	}
	return st, nil
}
