package models

import "time"

// TeamStatistics — строка лидерборда для одной команды. Турнирные и
// скримовые показатели ведутся раздельно; комбинированные поля — их сумма.
// Таблица перестраивается целиком батч-задачей, обработчики запросов её
// не патчат.
type TeamStatistics struct {
	ID     int `json:"id" db:"id"`
	TeamID int `json:"team_id" db:"team_id"`

	MatchesPlayed int `json:"matches_played" db:"matches_played"`

	TournamentWins           int `json:"tournament_wins" db:"tournament_wins"`
	TournamentPositionPoints int `json:"tournament_position_points" db:"tournament_position_points"`
	TournamentKillPoints     int `json:"tournament_kill_points" db:"tournament_kill_points"`

	ScrimWins           int `json:"scrim_wins" db:"scrim_wins"`
	ScrimPositionPoints int `json:"scrim_position_points" db:"scrim_position_points"`
	ScrimKillPoints     int `json:"scrim_kill_points" db:"scrim_kill_points"`

	TotalPositionPoints int `json:"total_position_points" db:"total_position_points"`
	TotalKillPoints     int `json:"total_kill_points" db:"total_kill_points"`
	TotalPoints         int `json:"total_points" db:"total_points"`

	Rank           int `json:"rank" db:"rank"`
	TournamentRank int `json:"tournament_rank" db:"tournament_rank"`
	ScrimRank      int `json:"scrim_rank" db:"scrim_rank"`

	LastUpdated time.Time `json:"last_updated" db:"last_updated"`

	// Заполняется сервисом для отдачи наружу.
	TeamName string `json:"team_name,omitempty" db:"-"`
}

// RecalculateTotals сводит раздельные показатели в комбинированные.
func (s *TeamStatistics) RecalculateTotals() {
	s.TotalPositionPoints = s.TournamentPositionPoints + s.ScrimPositionPoints
	s.TotalKillPoints = s.TournamentKillPoints + s.ScrimKillPoints
	s.TotalPoints = s.TotalPositionPoints + s.TotalKillPoints
}

// TournamentPoints — суммарные турнирные очки (для турнирного рейтинга).
func (s *TeamStatistics) TournamentPoints() int {
	return s.TournamentPositionPoints + s.TournamentKillPoints
}

// ScrimPoints — суммарные скримовые очки (для скримового рейтинга).
func (s *TeamStatistics) ScrimPoints() int {
	return s.ScrimPositionPoints + s.ScrimKillPoints
}
