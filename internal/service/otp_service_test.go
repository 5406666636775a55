package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Abishake01/0G-Proof-Pass/internal/config"
	"github.com/Abishake01/0G-Proof-Pass/internal/mail"
	"github.com/Abishake01/0G-Proof-Pass/internal/models"
	"github.com/Abishake01/0G-Proof-Pass/internal/pkg/apperror"
	"github.com/Abishake01/0G-Proof-Pass/internal/ratelimit"
	"github.com/Abishake01/0G-Proof-Pass/internal/repository"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// testClock управляемые часы: время задаётся в миллисекундах от epoch.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock { return &testClock{t: epoch} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) SetMs(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = epoch.Add(time.Duration(ms) * time.Millisecond)
}

// recordingSender запоминает последний отправленный код для каждого адреса.
type recordingSender struct {
	mu    sync.Mutex
	codes map[string]string
	calls int
}

func newRecordingSender() *recordingSender {
	return &recordingSender{codes: make(map[string]string)}
}

func (s *recordingSender) SendOTP(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = code
	s.calls++
	return nil
}

func (s *recordingSender) Code(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendOTP(ctx context.Context, email, code string) error {
	args := m.Called(ctx, email, code)
	return args.Error(0)
}

type mockOTPStore struct {
	mock.Mock
}

func (m *mockOTPStore) Put(ctx context.Context, entry *models.OTPEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockOTPStore) Get(ctx context.Context, identifier string) (*models.OTPEntry, bool, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.OTPEntry), args.Bool(1), args.Error(2)
}

func (m *mockOTPStore) Remove(ctx context.Context, identifier string) error {
	return m.Called(ctx, identifier).Error(0)
}

func (m *mockOTPStore) Consume(ctx context.Context, identifier string, decide models.OTPDecider) (bool, error) {
	args := m.Called(ctx, identifier, decide)
	return args.Bool(0), args.Error(1)
}

func testOTPConfig() config.OTPConfig {
	return config.OTPConfig{
		Expiry:          10 * time.Minute,
		RateLimitWindow: 15 * time.Minute,
		RateLimitMax:    5,
		Retention:       time.Hour,
		DispatchTimeout: time.Second,
	}
}

func newTestOTPService(cfg config.OTPConfig, sender mail.Sender) (*OTPService, *testClock, *repository.MemoryOTPRepository) {
	store := repository.NewMemoryOTPRepository(cfg.Retention)
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Policy{Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax})
	svc := NewOTPService(store, limiter, sender, nil, cfg)
	clock := newTestClock()
	svc.now = clock.Now
	return svc, clock, store
}

// sequenceCodes выдаёт коды по порядку.
func sequenceCodes(codes ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i%len(codes)]
		i++
		return code, nil
	}
}

func TestOTPService_IssueThenVerifyOnce(t *testing.T) {
	sender := newRecordingSender()
	svc, clock, _ := newTestOTPService(testOTPConfig(), sender)
	ctx := context.Background()

	clock.SetMs(0)
	require.NoError(t, svc.RequestCode(ctx, "a@b.com"))
	code := sender.Code("a@b.com")
	require.Len(t, code, 6)

	clock.SetMs(5000)
	res, err := svc.VerifyCode(ctx, "a@b.com", code)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", res.Identifier)
	assert.Equal(t, epoch.Add(5*time.Second), res.VerifiedAt)

	clock.SetMs(6000)
	_, err = svc.VerifyCode(ctx, "a@b.com", code)
	assert.ErrorIs(t, err, apperror.ErrOTPNotFound)
}

func TestOTPService_StoresExpiry(t *testing.T) {
	svc, clock, store := newTestOTPService(testOTPConfig(), newRecordingSender())
	ctx := context.Background()

	clock.SetMs(0)
	require.NoError(t, svc.RequestCode(ctx, "a@b.com"))

	entry, found, err := store.Get(ctx, "a@b.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, epoch.Add(600_000*time.Millisecond), entry.ExpiresAt)
}

func TestOTPService_MismatchKeepsEntry(t *testing.T) {
	svc, _, _ := newTestOTPService(testOTPConfig(), newRecordingSender())
	svc.generate = sequenceCodes("123456")
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "m@x.io"))

	for i := 0; i < 3; i++ {
		_, err := svc.VerifyCode(ctx, "m@x.io", "654321")
		assert.ErrorIs(t, err, apperror.ErrOTPMismatch)
	}

	_, err := svc.VerifyCode(ctx, "m@x.io", "123456")
	assert.NoError(t, err)
}

func TestOTPService_Expired(t *testing.T) {
	svc, clock, store := newTestOTPService(testOTPConfig(), newRecordingSender())
	svc.generate = sequenceCodes("123456")
	ctx := context.Background()

	clock.SetMs(0)
	require.NoError(t, svc.RequestCode(ctx, "e@x.io"))

	clock.SetMs(600_001)
	_, err := svc.VerifyCode(ctx, "e@x.io", "123456")
	assert.ErrorIs(t, err, apperror.ErrOTPExpired)

	_, found, _ := store.Get(ctx, "e@x.io")
	assert.False(t, found)

	_, err = svc.VerifyCode(ctx, "e@x.io", "123456")
	assert.ErrorIs(t, err, apperror.ErrOTPNotFound)
}

func TestOTPService_ExpiryBoundaryIsInclusive(t *testing.T) {
	svc, clock, _ := newTestOTPService(testOTPConfig(), newRecordingSender())
	svc.generate = sequenceCodes("123456")
	ctx := context.Background()

	clock.SetMs(0)
	require.NoError(t, svc.RequestCode(ctx, "edge@x.io"))

	clock.SetMs(600_000)
	_, err := svc.VerifyCode(ctx, "edge@x.io", "123456")
	assert.NoError(t, err)
}

func TestOTPService_ExpiredWrongCodeStillExpired(t *testing.T) {
	svc, clock, _ := newTestOTPService(testOTPConfig(), newRecordingSender())
	svc.generate = sequenceCodes("123456")
	ctx := context.Background()

	clock.SetMs(0)
	require.NoError(t, svc.RequestCode(ctx, "e@x.io"))

	clock.SetMs(700_000)
	_, err := svc.VerifyCode(ctx, "e@x.io", "000000")
	assert.ErrorIs(t, err, apperror.ErrOTPExpired)
}

func TestOTPService_RateLimitScenario(t *testing.T) {
	sender := newRecordingSender()
	svc, clock, _ := newTestOTPService(testOTPConfig(), sender)
	ctx := context.Background()

	for ms := int64(0); ms < 5; ms++ {
		clock.SetMs(ms)
		require.NoError(t, svc.RequestCode(ctx, "x@y.com"), "request at t=%d", ms)
	}

	clock.SetMs(5)
	err := svc.RequestCode(ctx, "x@y.com")
	assert.ErrorIs(t, err, apperror.ErrRateLimited)
	assert.Equal(t, 5, sender.calls)

	clock.SetMs(15*60*1000 + 6)
	assert.NoError(t, svc.RequestCode(ctx, "x@y.com"))
}

func TestOTPService_NewCodeInvalidatesOld(t *testing.T) {
	svc, _, _ := newTestOTPService(testOTPConfig(), newRecordingSender())
	svc.generate = sequenceCodes("111111", "222222")
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "o@x.io"))
	require.NoError(t, svc.RequestCode(ctx, "o@x.io"))

	_, err := svc.VerifyCode(ctx, "o@x.io", "111111")
	assert.ErrorIs(t, err, apperror.ErrOTPMismatch)

	_, err = svc.VerifyCode(ctx, "o@x.io", "222222")
	assert.NoError(t, err)
}

func TestOTPService_DispatchFailureKeepsEntry(t *testing.T) {
	sender := new(mockSender)
	sender.On("SendOTP", mock.Anything, "d@x.io", "123456").Return(errors.New("smtp: 535 auth failed"))

	svc, _, store := newTestOTPService(testOTPConfig(), sender)
	svc.generate = sequenceCodes("123456")
	ctx := context.Background()

	err := svc.RequestCode(ctx, "d@x.io")
	assert.ErrorIs(t, err, apperror.ErrDispatchFailed)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, 500, appErr.HTTPStatus)

	_, found, _ := store.Get(ctx, "d@x.io")
	assert.True(t, found)

	// код уже сохранён и принимается, даже если письмо не дошло
	_, err = svc.VerifyCode(ctx, "d@x.io", "123456")
	assert.NoError(t, err)
	sender.AssertExpectations(t)
}

// blockingSender ждёт release или отмены контекста.
type blockingSender struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingSender) SendOTP(ctx context.Context, _, _ string) error {
	close(s.started)
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestOTPService_DispatchTimeout(t *testing.T) {
	cfg := testOTPConfig()
	cfg.DispatchTimeout = 30 * time.Millisecond
	sender := &blockingSender{started: make(chan struct{}), release: make(chan struct{})}
	svc, _, store := newTestOTPService(cfg, sender)

	start := time.Now()
	err := svc.RequestCode(context.Background(), "slow@x.io")
	assert.ErrorIs(t, err, apperror.ErrDispatchFailed)
	assert.Less(t, time.Since(start), time.Second)

	_, found, _ := store.Get(context.Background(), "slow@x.io")
	assert.True(t, found)
}

// ignoringSender не смотрит на контекст.
type ignoringSender struct{ release chan struct{} }

func (s *ignoringSender) SendOTP(context.Context, string, string) error {
	<-s.release
	return nil
}

func TestOTPService_DispatchTimeoutWithStuckSender(t *testing.T) {
	cfg := testOTPConfig()
	cfg.DispatchTimeout = 30 * time.Millisecond
	sender := &ignoringSender{release: make(chan struct{})}
	defer close(sender.release)
	svc, _, _ := newTestOTPService(cfg, sender)

	err := svc.RequestCode(context.Background(), "stuck@x.io")
	assert.ErrorIs(t, err, apperror.ErrDispatchFailed)
}

func TestOTPService_LockNotHeldDuringDispatch(t *testing.T) {
	sender := &blockingSender{started: make(chan struct{}), release: make(chan struct{})}
	svc, _, _ := newTestOTPService(testOTPConfig(), sender)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- svc.RequestCode(ctx, "slow@x.io") }()
	<-sender.started

	verified := make(chan error, 1)
	go func() {
		_, err := svc.VerifyCode(ctx, "other@x.io", "123456")
		verified <- err
	}()

	select {
	case err := <-verified:
		assert.ErrorIs(t, err, apperror.ErrOTPNotFound)
	case <-time.After(time.Second):
		t.Fatal("проверка заблокирована отправкой письма")
	}

	close(sender.release)
	assert.NoError(t, <-done)
}

func TestOTPService_InvalidIdentifier(t *testing.T) {
	sender := newRecordingSender()
	svc, _, _ := newTestOTPService(testOTPConfig(), sender)

	for _, raw := range []string{"", "   ", "no-at-sign", "a@b", "a b@c.com"} {
		err := svc.RequestCode(context.Background(), raw)
		assert.ErrorIs(t, err, apperror.ErrInvalidIdentifier, raw)
		appErr, ok := apperror.As(err)
		require.True(t, ok, raw)
		assert.Equal(t, apperror.ErrCodeValidation, appErr.Code)
	}
	assert.Zero(t, sender.calls)
}

func TestOTPService_InvalidIdentifierDoesNotConsumeLimit(t *testing.T) {
	cfg := testOTPConfig()
	cfg.RateLimitMax = 1
	svc, _, _ := newTestOTPService(cfg, newRecordingSender())

	require.Error(t, svc.RequestCode(context.Background(), "broken"))
	assert.NoError(t, svc.RequestCode(context.Background(), "ok@x.io"))
}

func TestOTPService_MissingFields(t *testing.T) {
	svc, _, _ := newTestOTPService(testOTPConfig(), newRecordingSender())

	_, err := svc.VerifyCode(context.Background(), "", "123456")
	assert.ErrorIs(t, err, apperror.ErrMissingOTPFields)

	_, err = svc.VerifyCode(context.Background(), "a@b.com", "")
	assert.ErrorIs(t, err, apperror.ErrMissingOTPFields)
}

func TestOTPService_NormalizesIdentifier(t *testing.T) {
	sender := newRecordingSender()
	svc, _, _ := newTestOTPService(testOTPConfig(), sender)
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "  Alice@Example.COM "))
	code := sender.Code("alice@example.com")
	require.NotEmpty(t, code)

	_, err := svc.VerifyCode(ctx, "alice@example.com", code)
	assert.NoError(t, err)
}

func TestOTPService_SharedLimitAcrossCase(t *testing.T) {
	cfg := testOTPConfig()
	cfg.RateLimitMax = 1
	svc, _, _ := newTestOTPService(cfg, newRecordingSender())

	require.NoError(t, svc.RequestCode(context.Background(), "case@x.io"))
	assert.ErrorIs(t, svc.RequestCode(context.Background(), "CASE@x.io"), apperror.ErrRateLimited)
}

func TestOTPService_MaxVerifyAttempts(t *testing.T) {
	cfg := testOTPConfig()
	cfg.MaxVerifyAttempts = 3
	svc, _, store := newTestOTPService(cfg, newRecordingSender())
	svc.generate = sequenceCodes("123456")
	ctx := context.Background()

	require.NoError(t, svc.RequestCode(ctx, "lock@x.io"))

	_, err := svc.VerifyCode(ctx, "lock@x.io", "000000")
	assert.ErrorIs(t, err, apperror.ErrOTPMismatch)
	_, err = svc.VerifyCode(ctx, "lock@x.io", "000001")
	assert.ErrorIs(t, err, apperror.ErrOTPMismatch)

	entry, _, _ := store.Get(ctx, "lock@x.io")
	assert.Equal(t, int64(2), entry.Attempts)

	_, err = svc.VerifyCode(ctx, "lock@x.io", "000002")
	assert.ErrorIs(t, err, apperror.ErrTooManyAttempts)

	_, err = svc.VerifyCode(ctx, "lock@x.io", "123456")
	assert.ErrorIs(t, err, apperror.ErrOTPNotFound)
}

func TestOTPService_ConcurrentVerifyConsumesOnce(t *testing.T) {
	svc, _, _ := newTestOTPService(testOTPConfig(), newRecordingSender())
	svc.generate = sequenceCodes("123456")
	ctx := context.Background()
	require.NoError(t, svc.RequestCode(ctx, "race@x.io"))

	var wg sync.WaitGroup
	var mu sync.Mutex
	verified := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.VerifyCode(ctx, "race@x.io", "123456"); err == nil {
				mu.Lock()
				verified++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, verified)
}

func TestOTPService_StoreErrorIsNotDomainError(t *testing.T) {
	store := new(mockOTPStore)
	store.On("Consume", mock.Anything, "a@b.com", mock.Anything).Return(false, errors.New("redis: connection refused"))

	limiter := ratelimit.NewMemoryLimiter(ratelimit.DefaultPolicy)
	svc := NewOTPService(store, limiter, newRecordingSender(), nil, testOTPConfig())

	_, err := svc.VerifyCode(context.Background(), "a@b.com", "123456")
	require.Error(t, err)
	_, isApp := apperror.As(err)
	assert.False(t, isApp)
	store.AssertExpectations(t)
}

func TestOTPService_PutErrorSkipsDispatch(t *testing.T) {
	store := new(mockOTPStore)
	store.On("Put", mock.Anything, mock.AnythingOfType("*models.OTPEntry")).Return(errors.New("redis down"))
	sender := new(mockSender)

	limiter := ratelimit.NewMemoryLimiter(ratelimit.DefaultPolicy)
	svc := NewOTPService(store, limiter, sender, nil, testOTPConfig())

	err := svc.RequestCode(context.Background(), "a@b.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrDispatchFailed)
	sender.AssertNotCalled(t, "SendOTP", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateCode_Range(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 2000; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		var n int
		_, err = fmt.Sscanf(code, "%d", &n)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 1900)
}
