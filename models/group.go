package models

import "time"

// GroupStatus — состояние группы внутри раунда.
type GroupStatus string

const (
	GroupWaiting   GroupStatus = "waiting"
	GroupOngoing   GroupStatus = "ongoing"
	GroupCompleted GroupStatus = "completed"
)

// MaxTeamsPerGroup — жёсткий предел размера группы (размер лобби).
const MaxTeamsPerGroup = 25

// Group — корзина команд, играющих друг против друга в рамках одного раунда.
// Имя уникально в пределах (турнир, раунд). QualifyingTeams копируется из
// конфигурации раунда при создании и далее не меняется.
type Group struct {
	ID              int         `json:"id" db:"id"`
	TournamentID    int         `json:"tournament_id" db:"tournament_id"`
	RoundNumber     int         `json:"round_number" db:"round_number"`
	Name            string      `json:"group_name" db:"group_name"`
	QualifyingTeams int         `json:"qualifying_teams" db:"qualifying_teams"`
	Status          GroupStatus `json:"status" db:"status"`
	WinnerID        *int        `json:"winner_id,omitempty" db:"winner_registration_id"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`

	// Связанные сущности, заполняются сервисом, не мапятся напрямую.
	Teams   []Registration `json:"teams,omitempty" db:"-"`
	Matches []Match        `json:"matches,omitempty" db:"-"`
}

// IsHeadToHead — группа из ровно двух команд (формат 5v5: Valorant, COD).
func (g *Group) IsHeadToHead() bool {
	return len(g.Teams) == 2
}
