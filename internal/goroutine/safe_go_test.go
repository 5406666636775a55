package goroutine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *captureLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, fmt.Sprintf(format, args...))
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	log := &captureLogger{}
	rh := NewRecoveryHandler(log)

	rh.SafeGo(func() { panic("boom") })

	require.NoError(t, rh.Wait(context.Background()))
	require.Len(t, log.msgs, 1)
	assert.Contains(t, log.msgs[0], "boom")
}

func TestSafeGoWithContext_PassesContext(t *testing.T) {
	rh := NewRecoveryHandler(&captureLogger{})
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	got := make(chan interface{}, 1)
	rh.SafeGoWithContext(ctx, func(ctx context.Context) { got <- ctx.Value(key{}) })

	require.NoError(t, rh.Wait(context.Background()))
	assert.Equal(t, "v", <-got)
}

func TestWait_RespectsDeadline(t *testing.T) {
	rh := NewRecoveryHandler(&captureLogger{})
	release := make(chan struct{})
	rh.SafeGo(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rh.Wait(ctx), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, rh.Wait(context.Background()))
}
