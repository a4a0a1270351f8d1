package grouping

import (
	"sort"

	"github.com/Dosada05/scrimverse-engine/models"
)

// Standing — строка турнирной таблицы группы или раунда.
type Standing struct {
	TeamID         int    `json:"team_id"`
	TeamName       string `json:"team_name"`
	PositionPoints int    `json:"position_points"`
	KillPoints     int    `json:"kill_points"`
	Wins           int    `json:"wins"`
	TotalPoints    int    `json:"total_points"`
	Rank           int    `json:"rank,omitempty"`
}

// ComputeStandings суммирует очки каждой команды по всем переданным счетам
// и сортирует результат детерминированно:
//  1. total_points по убыванию,
//  2. wins по убыванию (только тай-брейк, в сумму не входит),
//  3. kill_points по убыванию,
//  4. team_name по возрастанию (финальный тай-брейк).
//
// Команды без единого счёта попадают в таблицу с нулями.
func ComputeStandings(teams []models.Registration, scores []models.MatchScore) []Standing {
	byTeam := make(map[int]*Standing, len(teams))
	ordered := make([]*Standing, 0, len(teams))

	for _, t := range teams {
		s := &Standing{TeamID: t.ID, TeamName: t.TeamName}
		byTeam[t.ID] = s
		ordered = append(ordered, s)
	}

	for _, sc := range scores {
		s, ok := byTeam[sc.RegistrationID]
		if !ok {
			continue
		}
		s.PositionPoints += sc.PositionPoints
		s.KillPoints += sc.KillPoints
		s.Wins += sc.Wins
	}

	for _, s := range ordered {
		s.TotalPoints = s.PositionPoints + s.KillPoints
	}

	result := make([]Standing, len(ordered))
	for i, s := range ordered {
		result[i] = *s
	}
	SortStandings(result)

	for i := range result {
		result[i].Rank = i + 1
	}
	return result
}

// SortStandings применяет общий для всей системы порядок тай-брейков.
// Тот же порядок использует лидерборд при назначении рангов.
func SortStandings(standings []Standing) {
	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.KillPoints != b.KillPoints {
			return a.KillPoints > b.KillPoints
		}
		return a.TeamName < b.TeamName
	})
}

// SelectQualifiers возвращает ID первых k команд отсортированной таблицы.
func SelectQualifiers(standings []Standing, k int) []int {
	if k > len(standings) {
		k = len(standings)
	}
	ids := make([]int, 0, k)
	for _, s := range standings[:k] {
		ids = append(ids, s.TeamID)
	}
	return ids
}
