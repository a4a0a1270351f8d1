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
	ErrRegistrationNotFound          = errors.New("registration not found")
	ErrRegistrationDuplicate         = errors.New("team already registered for this tournament")
	ErrRegistrationInvalidTournament = errors.New("invalid tournament reference")
)

type RegistrationRepository interface {
	Create(ctx context.Context, exec SQLExecutor, reg *models.Registration) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Registration, error)
	// ListConfirmedByTournament возвращает подтверждённые регистрации —
	// пул команд для первого раунда.
	ListConfirmedByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Registration, error)
	// ListByIDs возвращает регистрации в порядке переданных идентификаторов.
	ListByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]models.Registration, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.RegistrationStatus) error
	CountConfirmed(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (r *postgresRegistrationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, exec SQLExecutor, reg *models.Registration) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO registrations (tournament_id, team_id, team_name, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, registered_at`

	err := executor.QueryRowContext(ctx, query,
		reg.TournamentID, reg.TeamID, reg.TeamName, reg.Status,
	).Scan(&reg.ID, &reg.RegisteredAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				return ErrRegistrationDuplicate
			case "23503":
				return ErrRegistrationInvalidTournament
			}
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Registration, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, team_id, team_name, status, registered_at
		FROM registrations
		WHERE id = $1`

	reg := &models.Registration{}
	err := executor.QueryRowContext(ctx, query, id).Scan(
		&reg.ID, &reg.TournamentID, &reg.TeamID, &reg.TeamName, &reg.Status, &reg.RegisteredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

func (r *postgresRegistrationRepository) ListConfirmedByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.Registration, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, team_id, team_name, status, registered_at
		FROM registrations
		WHERE tournament_id = $1 AND status = $2
		ORDER BY id`

	rows, err := executor.QueryContext(ctx, query, tournamentID, models.RegistrationConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmed registrations: %w", err)
	}
	defer rows.Close()

	return scanRegistrations(rows)
}

func (r *postgresRegistrationRepository) ListByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]models.Registration, error) {
	if len(ids) == 0 {
		return []models.Registration{}, nil
	}
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, team_id, team_name, status, registered_at
		FROM registrations
		WHERE id = ANY($1)`

	rows, err := executor.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations by ids: %w", err)
	}
	defer rows.Close()

	regs, err := scanRegistrations(rows)
	if err != nil {
		return nil, err
	}

	// Сохраняем порядок входных идентификаторов.
	byID := make(map[int]models.Registration, len(regs))
	for _, reg := range regs {
		byID[reg.ID] = reg
	}
	ordered := make([]models.Registration, 0, len(ids))
	for _, id := range ids {
		if reg, ok := byID[id]; ok {
			ordered = append(ordered, reg)
		}
	}
	return ordered, nil
}

func (r *postgresRegistrationRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.RegistrationStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE registrations SET status = $1 WHERE id = $2`

	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update registration status: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) CountConfirmed(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := r.getExecutor(exec)
	query := `SELECT COUNT(*) FROM registrations WHERE tournament_id = $1 AND status = $2`

	var count int
	err := executor.QueryRowContext(ctx, query, tournamentID, models.RegistrationConfirmed).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count confirmed registrations: %w", err)
	}
	return count, nil
}

func scanRegistrations(rows *sql.Rows) ([]models.Registration, error) {
	regs := []models.Registration{}
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(
			&reg.ID, &reg.TournamentID, &reg.TeamID, &reg.TeamName, &reg.Status, &reg.RegisteredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan registration row: %w", err)
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registration rows: %w", err)
	}
	return regs, nil
}
