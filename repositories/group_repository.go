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
	ErrGroupNotFound          = errors.New("group not found")
	ErrGroupInvalidTournament = errors.New("invalid tournament reference for group")
	ErrGroupTeamDuplicate     = errors.New("team already assigned to this group")
)

type GroupRepository interface {
	Create(ctx context.Context, exec SQLExecutor, group *models.Group) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Group, error)
	// ExistsForRound — страховка идемпотентности: повторная конфигурация
	// раунда с уже созданными группами отклоняется.
	ExistsForRound(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) (bool, error)
	ListByRound(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) ([]*models.Group, error)
	AddTeams(ctx context.Context, exec SQLExecutor, groupID int, registrationIDs []int) error
	ListTeams(ctx context.Context, exec SQLExecutor, groupID int) ([]models.Registration, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.GroupStatus) error
	SetWinner(ctx context.Context, exec SQLExecutor, id int, winnerID int) error
	CountIncompleteByRound(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) (int, error)
}

type postgresGroupRepository struct {
	db *sql.DB
}

func NewPostgresGroupRepository(db *sql.DB) GroupRepository {
	return &postgresGroupRepository{db: db}
}

func (r *postgresGroupRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresGroupRepository) Create(ctx context.Context, exec SQLExecutor, group *models.Group) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO groups (tournament_id, round_number, group_name, qualifying_teams, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		group.TournamentID, group.RoundNumber, group.Name, group.QualifyingTeams, group.Status,
	).Scan(&group.ID, &group.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrGroupInvalidTournament
		}
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

func (r *postgresGroupRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Group, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, round_number, group_name, qualifying_teams, status, winner_registration_id, created_at
		FROM groups
		WHERE id = $1`

	g := &models.Group{}
	err := executor.QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.TournamentID, &g.RoundNumber, &g.Name, &g.QualifyingTeams, &g.Status, &g.WinnerID, &g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

func (r *postgresGroupRepository) ExistsForRound(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) (bool, error) {
	executor := r.getExecutor(exec)
	query := `SELECT EXISTS(SELECT 1 FROM groups WHERE tournament_id = $1 AND round_number = $2)`

	var exists bool
	err := executor.QueryRowContext(ctx, query, tournamentID, roundNumber).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check groups for round: %w", err)
	}
	return exists, nil
}

func (r *postgresGroupRepository) ListByRound(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) ([]*models.Group, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, round_number, group_name, qualifying_teams, status, winner_registration_id, created_at
		FROM groups
		WHERE tournament_id = $1 AND round_number = $2
		ORDER BY group_name`

	rows, err := executor.QueryContext(ctx, query, tournamentID, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups for round: %w", err)
	}
	defer rows.Close()

	groups := []*models.Group{}
	for rows.Next() {
		g := &models.Group{}
		if err := rows.Scan(
			&g.ID, &g.TournamentID, &g.RoundNumber, &g.Name, &g.QualifyingTeams, &g.Status, &g.WinnerID, &g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		groups = append(groups, g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group rows: %w", err)
	}
	return groups, nil
}

func (r *postgresGroupRepository) AddTeams(ctx context.Context, exec SQLExecutor, groupID int, registrationIDs []int) error {
	if len(registrationIDs) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	query := `INSERT INTO group_teams (group_id, registration_id) VALUES ($1, $2)`

	for _, regID := range registrationIDs {
		if _, err := executor.ExecContext(ctx, query, groupID, regID); err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return ErrGroupTeamDuplicate
			}
			return fmt.Errorf("failed to add team %d to group %d: %w", regID, groupID, err)
		}
	}
	return nil
}

func (r *postgresGroupRepository) ListTeams(ctx context.Context, exec SQLExecutor, groupID int) ([]models.Registration, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT r.id, r.tournament_id, r.team_id, r.team_name, r.status, r.registered_at
		FROM registrations r
		JOIN group_teams gt ON gt.registration_id = r.id
		WHERE gt.group_id = $1
		ORDER BY gt.id`

	rows, err := executor.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group teams: %w", err)
	}
	defer rows.Close()

	return scanRegistrations(rows)
}

func (r *postgresGroupRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.GroupStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE groups SET status = $1 WHERE id = $2`

	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update group status: %w", err)
	}
	return checkAffectedRows(result, ErrGroupNotFound)
}

func (r *postgresGroupRepository) SetWinner(ctx context.Context, exec SQLExecutor, id int, winnerID int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE groups SET winner_registration_id = $1 WHERE id = $2`

	result, err := executor.ExecContext(ctx, query, winnerID, id)
	if err != nil {
		return fmt.Errorf("failed to set group winner: %w", err)
	}
	return checkAffectedRows(result, ErrGroupNotFound)
}

func (r *postgresGroupRepository) CountIncompleteByRound(ctx context.Context, exec SQLExecutor, tournamentID, roundNumber int) (int, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT COUNT(*) FROM groups
		WHERE tournament_id = $1 AND round_number = $2 AND status != $3`

	var count int
	err := executor.QueryRowContext(ctx, query, tournamentID, roundNumber, models.GroupCompleted).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count incomplete groups: %w", err)
	}
	return count, nil
}
