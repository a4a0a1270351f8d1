package models

import (
	"errors"
	"fmt"
	"time"
)

// MatchStatus — состояние матча: waiting → live → completed.
// Live → waiting допускается только как аварийный откат (CanCancel).
type MatchStatus string

const (
	MatchWaiting   MatchStatus = "waiting"
	MatchLive      MatchStatus = "live"
	MatchCompleted MatchStatus = "completed"
)

// MatchPolicy — тайминги жизненного цикла матча. Значения задаются в
// конфигурации и передаются в проверки переходов вместе с текущим временем,
// чтобы бизнес-логика не зависела от time.Now напрямую.
type MatchPolicy struct {
	// Минимальная длительность live-матча перед завершением.
	MinLiveDuration time.Duration
	// Окно, в течение которого live-матч можно откатить в waiting.
	CancelWindow time.Duration
	// Окно редактирования счёта после завершения матча.
	ScoreEditGrace time.Duration
}

// DefaultMatchPolicy соответствует поведению исходной системы:
// 5 минут минимум в live, 10 минут на откат, 15 минут на правку счёта.
func DefaultMatchPolicy() MatchPolicy {
	return MatchPolicy{
		MinLiveDuration: 5 * time.Minute,
		CancelWindow:    10 * time.Minute,
		ScoreEditGrace:  15 * time.Minute,
	}
}

// Ошибки переходов конечного автомата матча. Сервисный слой оборачивает их
// в ErrInvalidTransition для маппинга на HTTP.
var (
	ErrMatchNotWaiting      = errors.New("match is not in waiting state")
	ErrMatchNotLive         = errors.New("match is not currently live")
	ErrMatchAlreadyDone     = errors.New("match is already completed")
	ErrMatchRoomRequired    = errors.New("room id and room secret must be set before start")
	ErrMatchNotEnoughTeams  = errors.New("at least 2 confirmed teams are required")
	ErrMatchPrevNotComplete = errors.New("previous match must be completed first")
	ErrMatchPrevNoScores    = errors.New("previous match has no submitted scores")
	ErrMatchTooEarlyToEnd   = errors.New("match has not reached the minimum live duration")
	ErrMatchScoresMissing   = errors.New("not every team has a submitted score")
	ErrMatchHasScores       = errors.New("match already has submitted scores")
	ErrMatchCancelExpired   = errors.New("cancel window has elapsed")
	ErrMatchScoresLocked    = errors.New("score editing is locked for this match")
)

// Match — одиночное состязание внутри группы. MatchNumber последователен,
// начиная с 1, и уникален в пределах группы.
type Match struct {
	ID          int         `json:"id" db:"id"`
	GroupID     int         `json:"group_id" db:"group_id"`
	MatchNumber int         `json:"match_number" db:"match_number"`
	Status      MatchStatus `json:"status" db:"status"`
	RoomID      string      `json:"room_id,omitempty" db:"room_id"`
	RoomSecret  string      `json:"-" db:"room_secret"`
	WinnerID    *int        `json:"winner_id,omitempty" db:"winner_registration_id"`
	StartedAt   *time.Time  `json:"started_at,omitempty" db:"started_at"`
	EndedAt     *time.Time  `json:"ended_at,omitempty" db:"ended_at"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`

	Scores []MatchScore `json:"scores,omitempty" db:"-"`
}

// CanStart проверяет переход waiting → live. prev — предыдущий матч группы
// (nil для матча №1), prevScored — есть ли у него хотя бы один счёт,
// confirmedTeams — число подтверждённых команд во всём турнире.
func (m *Match) CanStart(prev *Match, prevScored bool, confirmedTeams int) error {
	if m.Status == MatchCompleted {
		return ErrMatchAlreadyDone
	}
	if m.Status != MatchWaiting {
		return ErrMatchNotWaiting
	}
	if m.RoomID == "" || m.RoomSecret == "" {
		return ErrMatchRoomRequired
	}
	if confirmedTeams < 2 {
		return fmt.Errorf("%w (found %d)", ErrMatchNotEnoughTeams, confirmedTeams)
	}
	if m.MatchNumber > 1 {
		if prev == nil || prev.Status != MatchCompleted {
			return fmt.Errorf("%w: match %d", ErrMatchPrevNotComplete, m.MatchNumber-1)
		}
		if !prevScored {
			return fmt.Errorf("%w: match %d", ErrMatchPrevNoScores, m.MatchNumber-1)
		}
	}
	return nil
}

// CanEnd проверяет переход live → completed. missingScores — число команд
// группы без отправленного счёта (и без явного DNS/DQ).
func (m *Match) CanEnd(now time.Time, policy MatchPolicy, missingScores int) error {
	if m.Status != MatchLive {
		return ErrMatchNotLive
	}
	if m.StartedAt != nil && policy.MinLiveDuration > 0 {
		if elapsed := now.Sub(*m.StartedAt); elapsed < policy.MinLiveDuration {
			return fmt.Errorf("%w: %s elapsed, %s required",
				ErrMatchTooEarlyToEnd, elapsed.Round(time.Second), policy.MinLiveDuration)
		}
	}
	if missingScores > 0 {
		return fmt.Errorf("%w: %d team(s) missing", ErrMatchScoresMissing, missingScores)
	}
	return nil
}

// CanCancel проверяет аварийный откат live → waiting: счетов ещё нет
// и окно отката не истекло.
func (m *Match) CanCancel(now time.Time, policy MatchPolicy, hasScores bool) error {
	if m.Status != MatchLive {
		return ErrMatchNotLive
	}
	if hasScores {
		return ErrMatchHasScores
	}
	if m.StartedAt != nil && policy.CancelWindow > 0 {
		if now.Sub(*m.StartedAt) > policy.CancelWindow {
			return ErrMatchCancelExpired
		}
	}
	return nil
}

// CanEditRoomDetails: реквизиты комнаты меняются только до старта.
func (m *Match) CanEditRoomDetails() bool {
	return m.Status == MatchWaiting
}

// CanEditScores проверяет возможность записи счёта. Для завершённого матча
// действует грейс-окно после EndedAt; nextStarted блокирует правку задним
// числом, когда следующий матч группы уже начался.
func (m *Match) CanEditScores(now time.Time, policy MatchPolicy, nextStarted bool) error {
	switch m.Status {
	case MatchWaiting:
		return fmt.Errorf("%w: match has not started", ErrMatchScoresLocked)
	case MatchLive:
		return nil
	case MatchCompleted:
		if nextStarted {
			return fmt.Errorf("%w: next match already started", ErrMatchScoresLocked)
		}
		if m.EndedAt != nil && policy.ScoreEditGrace > 0 {
			if now.Sub(*m.EndedAt) > policy.ScoreEditGrace {
				return fmt.Errorf("%w: grace period expired", ErrMatchScoresLocked)
			}
		}
		return nil
	default:
		return ErrMatchScoresLocked
	}
}
