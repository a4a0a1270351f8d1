// Package grouping содержит чистые алгоритмы разбиения команд на группы и
// подсчёта турнирной таблицы, а также websocket-хаб для трансляции событий
// раунда. Пакет не обращается к базе данных.
package grouping

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/Dosada05/scrimverse-engine/models"
)

var (
	ErrTeamsPerGroupNotPositive = errors.New("teams per group must be greater than 0")
	ErrTeamsPerGroupTooLarge    = fmt.Errorf("teams per group cannot exceed %d", models.MaxTeamsPerGroup)
)

// CalculateGroups вычисляет число групп и распределение команд по ним.
// Число групп — округление total/perGroup (минимум 1); команды раскладываются
// максимально ровно: первые remainder групп получают на одну команду больше.
// Если максимальная группа всё же превышает лимит, пересчитываем с большим
// числом групп (самокорректирующийся повтор, ограниченный total).
func CalculateGroups(totalTeams, teamsPerGroup int) (int, []int, error) {
	if teamsPerGroup <= 0 {
		return 0, nil, ErrTeamsPerGroupNotPositive
	}
	if teamsPerGroup > models.MaxTeamsPerGroup {
		return 0, nil, ErrTeamsPerGroupTooLarge
	}

	numGroups := int(math.Round(float64(totalTeams) / float64(teamsPerGroup)))
	if numGroups < 1 {
		numGroups = 1
	}

	base := totalTeams / numGroups
	remainder := totalTeams % numGroups

	distribution := make([]int, numGroups)
	maxSize := 0
	for i := range distribution {
		count := base
		if i < remainder {
			count++
		}
		distribution[i] = count
		if count > maxSize {
			maxSize = count
		}
	}

	if maxSize > models.MaxTeamsPerGroup {
		return CalculateGroups(totalTeams, totalTeams/(numGroups+1)+1)
	}

	return numGroups, distribution, nil
}

// GroupLetters — алфавит для последовательных имён групп.
const GroupLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GroupName возвращает имя n-й группы: Group A, Group B, ..., Group Z,
// Group AA и так далее.
func GroupName(index int) string {
	if index < len(GroupLetters) {
		return fmt.Sprintf("Group %c", GroupLetters[index])
	}
	first := index/len(GroupLetters) - 1
	second := index % len(GroupLetters)
	return fmt.Sprintf("Group %c%c", GroupLetters[first], GroupLetters[second])
}

// AssignBye обрабатывает нечётное число команд в head-to-head формате:
// случайная команда получает bye и автоматически проходит дальше, остальные
// образуют чётный пул для попарных лобби.
func AssignBye(teams []models.Registration, rng *rand.Rand) ([]models.Registration, *models.Registration) {
	if len(teams)%2 == 0 {
		return teams, nil
	}
	idx := rng.Intn(len(teams))
	bye := teams[idx]
	even := make([]models.Registration, 0, len(teams)-1)
	for i, t := range teams {
		if i != idx {
			even = append(even, t)
		}
	}
	return even, &bye
}

// Shuffle перемешивает пул команд, чтобы избежать сеяного распределения.
func Shuffle(teams []models.Registration, rng *rand.Rand) {
	rng.Shuffle(len(teams), func(i, j int) {
		teams[i], teams[j] = teams[j], teams[i]
	})
}
