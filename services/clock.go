package services

import "time"

// Clock отделяет бизнес-логику от системного времени. В проде используется
// realClock, тесты подставляют фиксированное время.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// NewRealClock возвращает часы на основе time.Now.
func NewRealClock() Clock { return realClock{} }
