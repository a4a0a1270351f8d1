package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/scrimverse-engine/models"
)

var ErrStatisticsNotFound = errors.New("team statistics not found")

type StatisticsRepository interface {
	// ReplaceAll атомарно подменяет таблицу лидерборда новым снимком.
	ReplaceAll(ctx context.Context, exec SQLExecutor, stats []*models.TeamStatistics) error
	List(ctx context.Context, exec SQLExecutor, limit, offset int) ([]*models.TeamStatistics, error)
	GetByTeamID(ctx context.Context, exec SQLExecutor, teamID int) (*models.TeamStatistics, error)
	Count(ctx context.Context, exec SQLExecutor) (int, error)
}

type postgresStatisticsRepository struct {
	db *sql.DB
}

func NewPostgresStatisticsRepository(db *sql.DB) StatisticsRepository {
	return &postgresStatisticsRepository{db: db}
}

func (r *postgresStatisticsRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const statisticsColumns = `
	id, team_id, matches_played,
	tournament_wins, tournament_position_points, tournament_kill_points,
	scrim_wins, scrim_position_points, scrim_kill_points,
	total_position_points, total_kill_points, total_points,
	rank, tournament_rank, scrim_rank, last_updated`

func (r *postgresStatisticsRepository) ReplaceAll(ctx context.Context, exec SQLExecutor, stats []*models.TeamStatistics) error {
	executor := r.getExecutor(exec)

	if _, err := executor.ExecContext(ctx, `DELETE FROM team_statistics`); err != nil {
		return fmt.Errorf("failed to clear team statistics: %w", err)
	}

	query := `
		INSERT INTO team_statistics (
			team_id, matches_played,
			tournament_wins, tournament_position_points, tournament_kill_points,
			scrim_wins, scrim_position_points, scrim_kill_points,
			total_position_points, total_kill_points, total_points,
			rank, tournament_rank, scrim_rank, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	for _, s := range stats {
		err := executor.QueryRowContext(ctx, query,
			s.TeamID, s.MatchesPlayed,
			s.TournamentWins, s.TournamentPositionPoints, s.TournamentKillPoints,
			s.ScrimWins, s.ScrimPositionPoints, s.ScrimKillPoints,
			s.TotalPositionPoints, s.TotalKillPoints, s.TotalPoints,
			s.Rank, s.TournamentRank, s.ScrimRank, s.LastUpdated,
		).Scan(&s.ID)
		if err != nil {
			return fmt.Errorf("failed to insert statistics for team %d: %w", s.TeamID, err)
		}
	}
	return nil
}

func (r *postgresStatisticsRepository) List(ctx context.Context, exec SQLExecutor, limit, offset int) ([]*models.TeamStatistics, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + statisticsColumns + ` FROM team_statistics ORDER BY rank`

	args := []interface{}{}
	argID := 1
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, limit)
		argID++
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, offset)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list team statistics: %w", err)
	}
	defer rows.Close()

	stats := []*models.TeamStatistics{}
	for rows.Next() {
		s := &models.TeamStatistics{}
		if err := scanStatistics(rows, s); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statistics rows: %w", err)
	}
	return stats, nil
}

func (r *postgresStatisticsRepository) GetByTeamID(ctx context.Context, exec SQLExecutor, teamID int) (*models.TeamStatistics, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + statisticsColumns + ` FROM team_statistics WHERE team_id = $1`

	s := &models.TeamStatistics{}
	err := executor.QueryRowContext(ctx, query, teamID).Scan(
		&s.ID, &s.TeamID, &s.MatchesPlayed,
		&s.TournamentWins, &s.TournamentPositionPoints, &s.TournamentKillPoints,
		&s.ScrimWins, &s.ScrimPositionPoints, &s.ScrimKillPoints,
		&s.TotalPositionPoints, &s.TotalKillPoints, &s.TotalPoints,
		&s.Rank, &s.TournamentRank, &s.ScrimRank, &s.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatisticsNotFound
		}
		return nil, fmt.Errorf("failed to get team statistics: %w", err)
	}
	return s, nil
}

func (r *postgresStatisticsRepository) Count(ctx context.Context, exec SQLExecutor) (int, error) {
	executor := r.getExecutor(exec)

	var count int
	err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM team_statistics`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count team statistics: %w", err)
	}
	return count, nil
}

func scanStatistics(rows *sql.Rows, s *models.TeamStatistics) error {
	if err := rows.Scan(
		&s.ID, &s.TeamID, &s.MatchesPlayed,
		&s.TournamentWins, &s.TournamentPositionPoints, &s.TournamentKillPoints,
		&s.ScrimWins, &s.ScrimPositionPoints, &s.ScrimKillPoints,
		&s.TotalPositionPoints, &s.TotalKillPoints, &s.TotalPoints,
		&s.Rank, &s.TournamentRank, &s.ScrimRank, &s.LastUpdated,
	); err != nil {
		return fmt.Errorf("failed to scan statistics row: %w", err)
	}
	return nil
}
