package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки конфигурации раунда
	ErrInvalidGroupConfig     = errors.New("invalid group configuration")
	ErrRoundAlreadyConfigured = errors.New("round is already configured")
	ErrRoundNotConfigured     = errors.New("round is not configured yet")
	ErrNoTeamsForRound        = errors.New("no teams available for this round")

	// Ошибки переходов жизненного цикла. Конкретная причина приходит обёрнутой
	// поверх этой ошибки, HTTP-слой различает только класс.
	ErrInvalidTransition = errors.New("operation not allowed in current state")

	// Ошибки отбора и завершения раунда
	ErrTooManyTeams           = errors.New("selected teams exceed qualifying limit")
	ErrSelectionIncomplete    = errors.New("selected teams count does not match qualifying spots")
	ErrRoundNotComplete       = errors.New("not all groups of the round are completed")
	ErrInvalidSelectionAction = errors.New("unknown team selection action")

	// Ошибки выбора победителя
	ErrNotFinalRound         = errors.New("winner can only be selected in the final round")
	ErrWinnerNotParticipant  = errors.New("winner must be a participant of the final round")
	ErrWinnerNotSelected     = errors.New("final round winner is not selected yet")
	ErrNotEnoughParticipants = errors.New("at least two participants are required")

	// Ошибки аутентификации и авторизации
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	// Ошибки, специфичные для сущностей (дублируют ErrNotFound, но дают больше контекста)
	ErrTournamentNotFound   = errors.New("tournament not found")
	ErrGroupNotFound        = errors.New("group not found")
	ErrMatchNotFound        = errors.New("match not found")
	ErrTeamNotFound         = errors.New("team not found")
	ErrRegistrationNotFound = errors.New("team registration not found")

	// Ошибки состояния турнира
	ErrTournamentNotOngoing = errors.New("tournament is not ongoing")
	ErrValidationFailed     = errors.New("validation failed")
)
