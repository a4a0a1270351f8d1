package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/scrimverse-engine/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound       = errors.New("match not found")
	ErrMatchInvalidGroup   = errors.New("invalid group reference for match")
	ErrMatchNumberConflict = errors.New("match number already exists in this group")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	// GetByGroupAndNumber нужен для последовательного гейта: старт матча N
	// проверяет матч N-1 той же группы.
	GetByGroupAndNumber(ctx context.Context, exec SQLExecutor, groupID, matchNumber int) (*models.Match, error)
	ListByGroup(ctx context.Context, exec SQLExecutor, groupID int) ([]*models.Match, error)
	UpdateRoomDetails(ctx context.Context, exec SQLExecutor, id int, roomID, roomSecret string) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus, startedAt, endedAt *time.Time) error
	// ResetToWaiting возвращает live-матч в ожидание и стирает время старта.
	ResetToWaiting(ctx context.Context, exec SQLExecutor, id int) error
	SetWinner(ctx context.Context, exec SQLExecutor, id int, winnerID *int) error
	CountIncompleteByGroup(ctx context.Context, exec SQLExecutor, groupID int) (int, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches (group_id, match_number, status, room_id, room_secret)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		match.GroupID, match.MatchNumber, match.Status, match.RoomID, match.RoomSecret,
	).Scan(&match.ID, &match.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				return ErrMatchNumberConflict
			case "23503":
				return ErrMatchInvalidGroup
			}
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

const matchColumns = `
	id, group_id, match_number, status, room_id, room_secret,
	winner_registration_id, started_at, ended_at, created_at`

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`

	return scanMatch(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) GetByGroupAndNumber(ctx context.Context, exec SQLExecutor, groupID, matchNumber int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE group_id = $1 AND match_number = $2`

	return scanMatch(executor.QueryRowContext(ctx, query, groupID, matchNumber))
}

func scanMatch(row *sql.Row) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.ID, &m.GroupID, &m.MatchNumber, &m.Status, &m.RoomID, &m.RoomSecret,
		&m.WinnerID, &m.StartedAt, &m.EndedAt, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByGroup(ctx context.Context, exec SQLExecutor, groupID int) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE group_id = $1 ORDER BY match_number`

	rows, err := executor.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches by group: %w", err)
	}
	defer rows.Close()

	matches := []*models.Match{}
	for rows.Next() {
		m := &models.Match{}
		if err := rows.Scan(
			&m.ID, &m.GroupID, &m.MatchNumber, &m.Status, &m.RoomID, &m.RoomSecret,
			&m.WinnerID, &m.StartedAt, &m.EndedAt, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateRoomDetails(ctx context.Context, exec SQLExecutor, id int, roomID, roomSecret string) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET room_id = $1, room_secret = $2 WHERE id = $3`

	result, err := executor.ExecContext(ctx, query, roomID, roomSecret, id)
	if err != nil {
		return fmt.Errorf("failed to update match room details: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus, startedAt, endedAt *time.Time) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches SET
			status = $1,
			started_at = COALESCE($2, started_at),
			ended_at = COALESCE($3, ended_at)
		WHERE id = $4`

	result, err := executor.ExecContext(ctx, query, status, startedAt, endedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update match status: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) ResetToWaiting(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET status = $1, started_at = NULL WHERE id = $2`

	result, err := executor.ExecContext(ctx, query, models.MatchWaiting, id)
	if err != nil {
		return fmt.Errorf("failed to reset match to waiting: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SetWinner(ctx context.Context, exec SQLExecutor, id int, winnerID *int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET winner_registration_id = $1 WHERE id = $2`

	result, err := executor.ExecContext(ctx, query, winnerID, id)
	if err != nil {
		return fmt.Errorf("failed to set match winner: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) CountIncompleteByGroup(ctx context.Context, exec SQLExecutor, groupID int) (int, error) {
	executor := r.getExecutor(exec)
	query := `SELECT COUNT(*) FROM matches WHERE group_id = $1 AND status != $2`

	var count int
	err := executor.QueryRowContext(ctx, query, groupID, models.MatchCompleted).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count incomplete matches: %w", err)
	}
	return count, nil
}
