package models

import "time"

// MatchScore — очки одной команды в одном матче. Пара (match, team)
// уникальна. TotalPoints — производное поле, пересчитывается при каждой
// записи; Wins в сумму не входит и используется только как тай-брейк.
type MatchScore struct {
	ID             int       `json:"id" db:"id"`
	MatchID        int       `json:"match_id" db:"match_id"`
	RegistrationID int       `json:"team_id" db:"registration_id"`
	TeamName       string    `json:"team_name" db:"-"`
	Wins           int       `json:"wins" db:"wins"`
	PositionPoints int       `json:"position_points" db:"position_points"`
	KillPoints     int       `json:"kill_points" db:"kill_points"`
	TotalPoints    int       `json:"total_points" db:"total_points"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Recalculate обновляет производное поле перед записью.
func (s *MatchScore) Recalculate() {
	s.TotalPoints = s.PositionPoints + s.KillPoints
}

// RoundScore — агрегат очков команды за раунд: сумма её MatchScore по всем
// матчам всех групп раунда. Никогда не правится вручную, только пересчёт.
type RoundScore struct {
	ID             int       `json:"id" db:"id"`
	TournamentID   int       `json:"tournament_id" db:"tournament_id"`
	RoundNumber    int       `json:"round_number" db:"round_number"`
	RegistrationID int       `json:"team_id" db:"registration_id"`
	Wins           int       `json:"wins" db:"wins"`
	PositionPoints int       `json:"position_points" db:"position_points"`
	KillPoints     int       `json:"kill_points" db:"kill_points"`
	TotalPoints    int       `json:"total_points" db:"total_points"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// PlacementPoints конвертирует занятое место в позиционные очки
// (таблица BGMI-стиля; места ниже восьмого очков не дают).
func PlacementPoints(placement int) int {
	switch placement {
	case 1:
		return 10
	case 2:
		return 6
	case 3:
		return 5
	case 4:
		return 4
	case 5:
		return 3
	case 6:
		return 2
	case 7, 8:
		return 1
	default:
		return 0
	}
}
