package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/scrimverse-engine/models"
	"github.com/lib/pq"
)

var (
	ErrScoreNotFound            = errors.New("match score not found")
	ErrScoreInvalidMatch        = errors.New("invalid match reference for score")
	ErrScoreInvalidRegistration = errors.New("invalid registration reference for score")
)

type ScoreRepository interface {
	// Upsert пишет строку счёта для пары (match, registration). Повторная
	// запись перезаписывает значения, пока окно редактирования открыто.
	Upsert(ctx context.Context, exec SQLExecutor, score *models.MatchScore) error
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.MatchScore, error)
	// ListByGroup собирает все счета группы через join по матчам.
	ListByGroup(ctx context.Context, exec SQLExecutor, groupID int) ([]models.MatchScore, error)
	ListByRound(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) ([]models.MatchScore, error)
	// ListByTournament собирает все счета турнира по всем раундам.
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.MatchScore, error)
	CountByMatch(ctx context.Context, exec SQLExecutor, matchID int) (int, error)
	// RecomputeRoundScores пересобирает агрегаты раунда из строк счёта.
	// Вызывается после каждого submit, чтобы агрегаты никогда не расходились
	// с первичными данными.
	RecomputeRoundScores(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) error
	ListRoundScores(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) ([]models.RoundScore, error)
}

type postgresScoreRepository struct {
	db *sql.DB
}

func NewPostgresScoreRepository(db *sql.DB) ScoreRepository {
	return &postgresScoreRepository{db: db}
}

func (r *postgresScoreRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresScoreRepository) Upsert(ctx context.Context, exec SQLExecutor, score *models.MatchScore) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO match_scores (match_id, registration_id, wins, position_points, kill_points, total_points)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (match_id, registration_id) DO UPDATE SET
			wins = EXCLUDED.wins,
			position_points = EXCLUDED.position_points,
			kill_points = EXCLUDED.kill_points,
			total_points = EXCLUDED.total_points,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := executor.QueryRowContext(ctx, query,
		score.MatchID, score.RegistrationID, score.Wins,
		score.PositionPoints, score.KillPoints, score.TotalPoints,
	).Scan(&score.ID, &score.CreatedAt, &score.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			switch pqErr.Constraint {
			case "match_scores_match_id_fkey":
				return ErrScoreInvalidMatch
			case "match_scores_registration_id_fkey":
				return ErrScoreInvalidRegistration
			}
		}
		return fmt.Errorf("failed to upsert match score: %w", err)
	}
	return nil
}

const scoreColumns = `
	s.id, s.match_id, s.registration_id, s.wins,
	s.position_points, s.kill_points, s.total_points,
	s.created_at, s.updated_at`

func (r *postgresScoreRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.MatchScore, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + scoreColumns + ` FROM match_scores s WHERE s.match_id = $1 ORDER BY s.total_points DESC`

	rows, err := executor.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores by match: %w", err)
	}
	defer rows.Close()

	return scanScores(rows)
}

func (r *postgresScoreRepository) ListByGroup(ctx context.Context, exec SQLExecutor, groupID int) ([]models.MatchScore, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT` + scoreColumns + `
		FROM match_scores s
		JOIN matches m ON m.id = s.match_id
		WHERE m.group_id = $1`

	rows, err := executor.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores by group: %w", err)
	}
	defer rows.Close()

	return scanScores(rows)
}

func (r *postgresScoreRepository) ListByRound(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) ([]models.MatchScore, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT` + scoreColumns + `
		FROM match_scores s
		JOIN matches m ON m.id = s.match_id
		JOIN groups g ON g.id = m.group_id
		WHERE g.tournament_id = $1 AND g.round_number = $2`

	rows, err := executor.QueryContext(ctx, query, tournamentID, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores by round: %w", err)
	}
	defer rows.Close()

	return scanScores(rows)
}

func (r *postgresScoreRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.MatchScore, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT` + scoreColumns + `
		FROM match_scores s
		JOIN matches m ON m.id = s.match_id
		JOIN groups g ON g.id = m.group_id
		WHERE g.tournament_id = $1`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores by tournament: %w", err)
	}
	defer rows.Close()

	return scanScores(rows)
}

func (r *postgresScoreRepository) CountByMatch(ctx context.Context, exec SQLExecutor, matchID int) (int, error) {
	executor := r.getExecutor(exec)
	query := `SELECT COUNT(*) FROM match_scores WHERE match_id = $1`

	var count int
	err := executor.QueryRowContext(ctx, query, matchID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count match scores: %w", err)
	}
	return count, nil
}

func (r *postgresScoreRepository) RecomputeRoundScores(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) error {
	executor := r.getExecutor(exec)

	deleteQuery := `DELETE FROM round_scores WHERE tournament_id = $1 AND round_number = $2`
	if _, err := executor.ExecContext(ctx, deleteQuery, tournamentID, roundNumber); err != nil {
		return fmt.Errorf("failed to clear round scores: %w", err)
	}

	insertQuery := `
		INSERT INTO round_scores (tournament_id, round_number, registration_id, wins, position_points, kill_points, total_points)
		SELECT g.tournament_id, g.round_number, s.registration_id,
		       SUM(s.wins), SUM(s.position_points), SUM(s.kill_points), SUM(s.total_points)
		FROM match_scores s
		JOIN matches m ON m.id = s.match_id
		JOIN groups g ON g.id = m.group_id
		WHERE g.tournament_id = $1 AND g.round_number = $2
		GROUP BY g.tournament_id, g.round_number, s.registration_id`

	if _, err := executor.ExecContext(ctx, insertQuery, tournamentID, roundNumber); err != nil {
		return fmt.Errorf("failed to recompute round scores: %w", err)
	}
	return nil
}

func (r *postgresScoreRepository) ListRoundScores(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) ([]models.RoundScore, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT rs.id, rs.tournament_id, rs.round_number, rs.registration_id,
		       rs.wins, rs.position_points, rs.kill_points, rs.total_points
		FROM round_scores rs
		WHERE rs.tournament_id = $1 AND rs.round_number = $2
		ORDER BY rs.total_points DESC`

	rows, err := executor.QueryContext(ctx, query, tournamentID, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list round scores: %w", err)
	}
	defer rows.Close()

	scores := []models.RoundScore{}
	for rows.Next() {
		var rs models.RoundScore
		if err := rows.Scan(
			&rs.ID, &rs.TournamentID, &rs.RoundNumber, &rs.RegistrationID,
			&rs.Wins, &rs.PositionPoints, &rs.KillPoints, &rs.TotalPoints,
		); err != nil {
			return nil, fmt.Errorf("failed to scan round score row: %w", err)
		}
		scores = append(scores, rs)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating round score rows: %w", err)
	}
	return scores, nil
}

func scanScores(rows *sql.Rows) ([]models.MatchScore, error) {
	scores := []models.MatchScore{}
	for rows.Next() {
		var s models.MatchScore
		if err := rows.Scan(
			&s.ID, &s.MatchID, &s.RegistrationID, &s.Wins,
			&s.PositionPoints, &s.KillPoints, &s.TotalPoints,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating score rows: %w", err)
	}
	return scores, nil
}
