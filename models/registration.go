package models

import "time"

// RegistrationStatus — статус заявки команды на участие.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationRejected  RegistrationStatus = "rejected"
	RegistrationWithdrawn RegistrationStatus = "withdrawn"
)

// Registration — заявка команды на конкретный турнир. Ядро прогрессии читает
// заявки, но никогда не меняет их статус: это зона ответственности
// регистрационной подсистемы.
type Registration struct {
	ID           int                `json:"id" db:"id"`
	TournamentID int                `json:"tournament_id" db:"tournament_id"`
	TeamID       *int               `json:"team_id,omitempty" db:"team_id"`
	TeamName     string             `json:"team_name" db:"team_name"`
	Status       RegistrationStatus `json:"status" db:"status"`
	RegisteredAt time.Time          `json:"registered_at" db:"registered_at"`
}

// Team — постоянная команда, для которой ведётся статистика лидерборда.
// Временные команды (собранные под один турнир) в лидерборд не попадают.
type Team struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	IsTemporary bool      `json:"is_temporary" db:"is_temporary"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
