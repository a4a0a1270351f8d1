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
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament title conflict for this host")
	ErrTournamentInvalidHost  = errors.New("invalid host reference")
)

type ListTournamentsFilter struct {
	HostID    *int
	EventMode *models.EventMode
	Status    *models.TournamentStatus
	GameName  *string
	Limit     int
	Offset    int
}

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	// LockByID читает турнир с блокировкой FOR UPDATE. Вызывается только внутри
	// транзакции: все операторские операции над одним турниром сериализуются
	// через эту строку.
	LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	Update(ctx context.Context, t *models.Tournament) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	// UpdateRoundState пишет current_round и связанные JSONB-поля одним запросом.
	UpdateRoundState(ctx context.Context, exec SQLExecutor, t *models.Tournament) error
	Delete(ctx context.Context, id int) error
	GetTournamentsForAutoStatusUpdate(ctx context.Context, exec SQLExecutor, currentTime time.Time) ([]*models.Tournament, error)
	ListCompleted(ctx context.Context, exec SQLExecutor) ([]*models.Tournament, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, host_id, title, game_name, event_mode, status,
	max_participants, max_matches, current_round,
	rounds, round_status, selected_teams, winners,
	registration_start, registration_end, start_date, end_date, created_at`

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	executor := r.getExecutor(nil)
	query := `
		INSERT INTO tournaments (
			host_id, title, game_name, event_mode, status,
			max_participants, max_matches, current_round,
			rounds, round_status, selected_teams, winners,
			registration_start, registration_end, start_date, end_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		t.HostID, t.Title, t.GameName, t.EventMode, t.Status,
		t.MaxParticipants, t.MaxMatches, t.CurrentRound,
		t.Rounds, t.RoundStatus, t.SelectedTeams, t.Winners,
		t.RegistrationStart, t.RegistrationEnd, t.StartDate, t.EndDate,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	return r.scanOne(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1 FOR UPDATE`
	return r.scanOne(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) scanOne(row *sql.Row) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(
		&t.ID, &t.HostID, &t.Title, &t.GameName, &t.EventMode, &t.Status,
		&t.MaxParticipants, &t.MaxMatches, &t.CurrentRound,
		&t.Rounds, &t.RoundStatus, &t.SelectedTeams, &t.Winners,
		&t.RegistrationStart, &t.RegistrationEnd, &t.StartDate, &t.EndDate, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.HostID != nil {
		query += fmt.Sprintf(" AND host_id = $%d", argID)
		args = append(args, *filter.HostID)
		argID++
	}
	if filter.EventMode != nil {
		query += fmt.Sprintf(" AND event_mode = $%d", argID)
		args = append(args, *filter.EventMode)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.GameName != nil {
		query += fmt.Sprintf(" AND game_name = $%d", argID)
		args = append(args, *filter.GameName)
		argID++
	}

	query += " ORDER BY start_date DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := []models.Tournament{}
	for rows.Next() {
		var t models.Tournament
		if err := scanTournamentRow(rows, &t); err != nil {
			return nil, err
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournament rows: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	executor := r.getExecutor(nil)
	query := `
		UPDATE tournaments SET
			title = $1, game_name = $2, status = $3,
			max_participants = $4, max_matches = $5,
			registration_start = $6, registration_end = $7,
			start_date = $8, end_date = $9
		WHERE id = $10`

	result, err := executor.ExecContext(ctx, query,
		t.Title, t.GameName, t.Status,
		t.MaxParticipants, t.MaxMatches,
		t.RegistrationStart, t.RegistrationEnd,
		t.StartDate, t.EndDate, t.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1 WHERE id = $2`

	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament status: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateRoundState(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournaments SET
			current_round = $1, rounds = $2, round_status = $3,
			selected_teams = $4, winners = $5, status = $6
		WHERE id = $7`

	result, err := executor.ExecContext(ctx, query,
		t.CurrentRound, t.Rounds, t.RoundStatus,
		t.SelectedTeams, t.Winners, t.Status, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update tournament round state: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	executor := r.getExecutor(nil)
	query := `DELETE FROM tournaments WHERE id = $1`

	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete tournament: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// GetTournamentsForAutoStatusUpdate возвращает турниры, чей статус пора
// перевести по датам: upcoming с наступившим start_date и ongoing с прошедшим
// end_date.
func (r *postgresTournamentRepository) GetTournamentsForAutoStatusUpdate(ctx context.Context, exec SQLExecutor, currentTime time.Time) ([]*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + tournamentColumns + `
		FROM tournaments
		WHERE (status = $1 AND start_date <= $3)
		   OR (status = $2 AND end_date <= $3)`

	rows, err := executor.QueryContext(ctx, query,
		models.StatusUpcoming, models.StatusOngoing, currentTime)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments for status update: %w", err)
	}
	defer rows.Close()

	return scanTournamentRows(rows)
}

func (r *postgresTournamentRepository) ListCompleted(ctx context.Context, exec SQLExecutor) ([]*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE status = $1 ORDER BY id`

	rows, err := executor.QueryContext(ctx, query, models.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed tournaments: %w", err)
	}
	defer rows.Close()

	return scanTournamentRows(rows)
}

func scanTournamentRow(rows *sql.Rows, t *models.Tournament) error {
	if err := rows.Scan(
		&t.ID, &t.HostID, &t.Title, &t.GameName, &t.EventMode, &t.Status,
		&t.MaxParticipants, &t.MaxMatches, &t.CurrentRound,
		&t.Rounds, &t.RoundStatus, &t.SelectedTeams, &t.Winners,
		&t.RegistrationStart, &t.RegistrationEnd, &t.StartDate, &t.EndDate, &t.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to scan tournament row: %w", err)
	}
	return nil
}

func scanTournamentRows(rows *sql.Rows) ([]*models.Tournament, error) {
	tournaments := []*models.Tournament{}
	for rows.Next() {
		t := &models.Tournament{}
		if err := scanTournamentRow(rows, t); err != nil {
			return nil, err
		}
		tournaments = append(tournaments, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournament rows: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "tournaments_host_id_title_key" {
				return ErrTournamentNameConflict
			}
		case "23503":
			if pqErr.Constraint == "tournaments_host_id_fkey" {
				return ErrTournamentInvalidHost
			}
		}
	}
	return fmt.Errorf("tournament repository error: %w", err)
}
