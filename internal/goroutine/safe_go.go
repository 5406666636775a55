package goroutine

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/Abishake01/0G-Proof-Pass/internal/logger"
)

// Logger интерфейс для логирования ошибок
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler обрабатывает panic в горутинах и отслеживает запущенные задачи,
// чтобы при остановке сервера их можно было дождаться.
type RecoveryHandler struct {
	logger Logger
	wg     sync.WaitGroup
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(fn func()) {
	rh.wg.Add(1)
	go func() {
		defer rh.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				rh.logger.Errorf("Panic in goroutine: %v\nStack trace:\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	rh.SafeGo(func() { fn(ctx) })
}

// Wait ждёт завершения запущенных горутин или отмены контекста.
func (rh *RecoveryHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		rh.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// logrusLogger берёт logger.Log в момент записи: Init может заменить его после старта.
type logrusLogger struct{}

func (logrusLogger) Errorf(format string, args ...interface{}) {
	logger.Log.Errorf(format, args...)
}

// DefaultRecoveryHandler - глобальный обработчик, пишет через logrus
var DefaultRecoveryHandler = NewRecoveryHandler(logrusLogger{})

// SafeGo - упрощенная функция для запуска безопасной горутины
func SafeGo(fn func()) {
	DefaultRecoveryHandler.SafeGo(fn)
}

// SafeGoWithContext - упрощенная функция для запуска безопасной горутины с контекстом
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, fn)
}

// Wait ждёт горутины, запущенные через DefaultRecoveryHandler.
func Wait(ctx context.Context) error {
	return DefaultRecoveryHandler.Wait(ctx)
}
