package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	StatusUpcoming  TournamentStatus = "upcoming"
	StatusOngoing   TournamentStatus = "ongoing"
	StatusCompleted TournamentStatus = "completed"
	StatusCancelled TournamentStatus = "cancelled"
)

// EventMode различает полноформатные турниры и скримы (тренировочные события
// с одним раундом и одной группой, но той же механикой подсчёта очков).
type EventMode string

const (
	ModeTournament EventMode = "TOURNAMENT"
	ModeScrim      EventMode = "SCRIM"
)

// RoundStatus — состояние одного раунда внутри турнира.
type RoundStatus string

const (
	RoundWaiting   RoundStatus = "waiting"
	RoundOngoing   RoundStatus = "ongoing"
	RoundCompleted RoundStatus = "completed"
)

// RoundConfig описывает один сконфигурированный раунд турнира.
// QualifyingTeams == 0 означает финальный раунд: из него не квалифицируются,
// в нём выбирается победитель.
type RoundConfig struct {
	Round           int `json:"round"`
	MaxTeams        int `json:"max_teams"`
	QualifyingTeams int `json:"qualifying_teams,omitempty"`
}

// RoundState хранит состояние раунда вместе с метаданными
// (bye-команда для нечётного количества участников в head-to-head формате).
type RoundState struct {
	Status    RoundStatus `json:"status"`
	ByeTeamID *int        `json:"bye_team_id,omitempty"`
}

// RoundConfigList сериализуется в JSONB колонку rounds.
type RoundConfigList []RoundConfig

// RoundStateMap, SelectedTeamsMap и WinnersMap — типизированные замены
// нетипизированных JSON-полей. Ключ — номер раунда; encoding/json кодирует
// целочисленные ключи как строки, что сохраняет формат хранения.
type RoundStateMap map[int]RoundState

type SelectedTeamsMap map[int][]int

type WinnersMap map[int]int

type Tournament struct {
	ID                int              `json:"id" db:"id"`
	HostID            int              `json:"host_id" db:"host_id"`
	Title             string           `json:"title" db:"title"`
	GameName          string           `json:"game_name" db:"game_name"`
	EventMode         EventMode        `json:"event_mode" db:"event_mode"`
	Status            TournamentStatus `json:"status" db:"status"`
	MaxParticipants   int              `json:"max_participants" db:"max_participants"`
	MaxMatches        int              `json:"max_matches" db:"max_matches"`
	CurrentRound      int              `json:"current_round" db:"current_round"`
	Rounds            RoundConfigList  `json:"rounds" db:"rounds"`
	RoundStatus       RoundStateMap    `json:"round_status" db:"round_status"`
	SelectedTeams     SelectedTeamsMap `json:"selected_teams" db:"selected_teams"`
	Winners           WinnersMap       `json:"winners" db:"winners"`
	RegistrationStart time.Time        `json:"registration_start" db:"registration_start"`
	RegistrationEnd   time.Time        `json:"registration_end" db:"registration_end"`
	StartDate         time.Time        `json:"start_date" db:"start_date"`
	EndDate           time.Time        `json:"end_date" db:"end_date"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
}

// RoundByNumber возвращает конфигурацию раунда или nil, если раунд не настроен.
func (t *Tournament) RoundByNumber(n int) *RoundConfig {
	for i := range t.Rounds {
		if t.Rounds[i].Round == n {
			return &t.Rounds[i]
		}
	}
	return nil
}

// FinalRoundNumber возвращает номер последнего сконфигурированного раунда
// (0, если раунды не настроены).
func (t *Tournament) FinalRoundNumber() int {
	final := 0
	for _, r := range t.Rounds {
		if r.Round > final {
			final = r.Round
		}
	}
	return final
}

func (t *Tournament) IsFinalRound(n int) bool {
	final := t.FinalRoundNumber()
	return final != 0 && n == final
}

func (t *Tournament) IsScrim() bool {
	return t.EventMode == ModeScrim
}

// --- JSONB (de)сериализация на границе персистентности ---

func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func jsonScan(src, dst interface{}) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(data, dst)
	case string:
		return json.Unmarshal([]byte(data), dst)
	default:
		return fmt.Errorf("unsupported source type %T for JSONB scan", src)
	}
}

func (l RoundConfigList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return jsonValue(l)
}

func (l *RoundConfigList) Scan(src interface{}) error { return jsonScan(src, l) }

func (m RoundStateMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return jsonValue(m)
}

func (m *RoundStateMap) Scan(src interface{}) error { return jsonScan(src, m) }

func (m SelectedTeamsMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return jsonValue(m)
}

func (m *SelectedTeamsMap) Scan(src interface{}) error { return jsonScan(src, m) }

func (m WinnersMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return jsonValue(m)
}

func (m *WinnersMap) Scan(src interface{}) error { return jsonScan(src, m) }
