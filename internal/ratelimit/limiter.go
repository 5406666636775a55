// Package ratelimit ограничивает частоту выдачи кодов на один идентификатор
// скользящим окном: в окне допускается не более max запросов.
package ratelimit

import (
	"context"
	"time"
)

// Limiter решает, допустить ли очередной запрос кода для идентификатора.
// Отказ не записывается и не сдвигает окно.
type Limiter interface {
	Admit(ctx context.Context, identifier string, now time.Time) (bool, error)
}

// Policy параметры окна.
type Policy struct {
	Window time.Duration
	Max    int64
}

// DefaultPolicy 5 запросов за 15 минут.
var DefaultPolicy = Policy{Window: 15 * time.Minute, Max: 5}

// inWindow true, если отметка t ещё учитывается в окне на момент now.
func (p Policy) inWindow(t, now time.Time) bool {
	return now.Sub(t) < p.Window
}
