package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abishake01/0G-Proof-Pass/internal/ai"
	"github.com/Abishake01/0G-Proof-Pass/internal/cache"
	"github.com/Abishake01/0G-Proof-Pass/internal/config"
	"github.com/Abishake01/0G-Proof-Pass/internal/http/handlers"
	"github.com/Abishake01/0G-Proof-Pass/internal/http/middleware"
	"github.com/Abishake01/0G-Proof-Pass/internal/logger"
	"github.com/Abishake01/0G-Proof-Pass/internal/ratelimit"
	"github.com/Abishake01/0G-Proof-Pass/internal/repository"
	"github.com/Abishake01/0G-Proof-Pass/internal/service"
	"github.com/Abishake01/0G-Proof-Pass/internal/storage"
	"github.com/Abishake01/0G-Proof-Pass/internal/ws"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Discard()
}

type recordingSender struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (s *recordingSender) SendOTP(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.codes[email] = code
	return nil
}

func (s *recordingSender) code(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

type testEnv struct {
	engine *gin.Engine
	sender *recordingSender
	tokens *service.TokenManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Env:             "test",
		AllowedOrigins:  []string{"http://localhost:3000"},
		RateLimitLimit:  1000,
		RateLimitPeriod: time.Minute,
	}
	otpCfg := config.OTPConfig{Expiry: 10 * time.Minute, DispatchTimeout: time.Second}

	sender := &recordingSender{codes: make(map[string]string)}
	otp := service.NewOTPService(
		repository.NewMemoryOTPRepository(time.Hour),
		ratelimit.NewMemoryLimiter(ratelimit.DefaultPolicy),
		sender, nil, otpCfg,
	)
	tokens := service.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub(ctx)
	go hub.Run()

	contentStorage, err := storage.NewContentStorage(t.TempDir(), 1)
	require.NoError(t, err)

	compute := service.NewComputeService(repository.NewMemoryContributionRepository(), nil, hub, ai.NewMockScorer())
	checkins := service.NewCheckInService(repository.NewMemoryCheckInRepository(), nil, "https://proofpass.app", cache.NewMemoryCache())

	rateStore, err := middleware.NewRateLimitStore(nil)
	require.NoError(t, err)

	engine := SetupRouter(cfg, Handlers{
		Auth:    handlers.NewAuthHandler(otp, tokens),
		Compute: handlers.NewComputeHandler(compute),
		Storage: handlers.NewStorageHandler(contentStorage),
		CheckIn: handlers.NewCheckInHandler(checkins),
		Rewards: handlers.NewRewardsHandler(service.NewRewardTable()),
		Health: handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"memory": func(context.Context) error { return nil },
		}),
		WS: handlers.NewWSHandler(hub, cfg.AllowedOrigins),
	}, tokens, rateStore)

	return &testEnv{engine: engine, sender: sender, tokens: tokens}
}

func (e *testEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) verifiedToken(t *testing.T, email string) string {
	t.Helper()
	w := e.do(http.MethodPost, "/api/auth/send-otp", `{"email":"`+email+`"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodPost, "/api/auth/verify-otp", `{"email":"`+email+`","code":"`+e.sender.code(email)+`"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	token := w.Header().Get(middleware.VerificationTokenHeader)
	require.NotEmpty(t, token)
	return token
}

func TestAuth_SendAndVerifyContract(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/auth/send-otp", `{"email":"not-an-email"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Valid email is required"}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/auth/send-otp", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Valid email is required"}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/auth/send-otp", `{"email":"user@example.com"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"OTP sent to email"}`, w.Body.String())

	code := env.sender.code("user@example.com")
	require.Len(t, code, 6)

	w = env.do(http.MethodPost, "/api/auth/verify-otp", `{"email":"user@example.com"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Email and code are required"}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/auth/verify-otp", `{"email":"other@example.com","code":"123456"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"OTP not found or expired"}`, w.Body.String())

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	w = env.do(http.MethodPost, "/api/auth/verify-otp", `{"email":"user@example.com","code":"`+wrong+`"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid OTP"}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/auth/verify-otp", `{"email":"user@example.com","code":"`+code+`"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"OTP verified"}`, w.Body.String())

	token, err := env.tokens.ParseEmailToken(w.Header().Get(middleware.VerificationTokenHeader))
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", token.Email)

	// код одноразовый
	w = env.do(http.MethodPost, "/api/auth/verify-otp", `{"email":"user@example.com","code":"`+code+`"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"OTP not found or expired"}`, w.Body.String())
}

func TestAuth_RateLimitedPerEmail(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		w := env.do(http.MethodPost, "/api/auth/send-otp", `{"email":"user@example.com"}`, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(http.MethodPost, "/api/auth/send-otp", `{"email":"USER@example.com"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"Too many requests. Please try again later."}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/auth/send-otp", `{"email":"other@example.com"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_DispatchFailure(t *testing.T) {
	env := newTestEnv(t)
	env.sender.err = errors.New("smtp: 535 authentication failed")

	w := env.do(http.MethodPost, "/api/auth/send-otp", `{"email":"user@example.com"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to send OTP"}`, w.Body.String())
}

func signCheckIn(t *testing.T, eventID int64, email string) (string, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	wallet := crypto.PubkeyToAddress(key.PublicKey).Hex()
	sig, err := crypto.Sign(accounts.TextHash([]byte(service.CheckInMessage(eventID, email, wallet))), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return wallet, hexutil.Encode(sig)
}

func TestCheckIn_Attest(t *testing.T) {
	env := newTestEnv(t)
	token := env.verifiedToken(t, "user@example.com")
	wallet, sig := signCheckIn(t, 5, "user@example.com")

	body, err := json.Marshal(map[string]interface{}{"eventId": 5, "walletAddress": wallet, "signature": sig})
	require.NoError(t, err)

	w := env.do(http.MethodPost, "/api/checkin/attest", string(body), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	auth := map[string]string{"Authorization": "Bearer " + token}
	w = env.do(http.MethodPost, "/api/checkin/attest", string(body), auth)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		EventID       int64  `json:"eventId"`
		WalletAddress string `json:"walletAddress"`
		Email         string `json:"email"`
		Created       bool   `json:"created"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(5), resp.EventID)
	assert.Equal(t, wallet, resp.WalletAddress)
	assert.Equal(t, "user@example.com", resp.Email)
	assert.True(t, resp.Created)

	w = env.do(http.MethodPost, "/api/checkin/attest", string(body), auth)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/checkins?wallet="+wallet, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), wallet)

	other := env.verifiedToken(t, "other@example.com")
	w = env.do(http.MethodPost, "/api/checkin/attest", string(body), map[string]string{"Authorization": "Bearer " + other})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"signature does not match wallet address"}`, w.Body.String())
}

func TestCheckIn_QR(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/events/12/checkin-qr", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte{0x89, 'P', 'N', 'G'}))

	w = env.do(http.MethodGet, "/api/events/zero/checkin-qr", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompute_Analyze(t *testing.T) {
	env := newTestEnv(t)
	wallet := "0x52908400098527886E0F7030069857D2E4169EE7"

	w := env.do(http.MethodPost, "/api/compute/analyze",
		`{"photos":["0xabc"],"feedback":"This event was great","eventId":7,"walletAddress":"`+wallet+`"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"photoScore":70,"feedbackScore":22,"overallScore":56,"tier":"Contributor",
		"reasoning":"Analyzed 1 photo(s) and 20 characters of feedback. Quality assessment based on content depth and relevance.",
		"isSpam":false,"isDuplicate":false
	}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/compute/analyze", `{"feedback":"x","eventId":7,"walletAddress":"`+wallet+`"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Photos array is required"}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/compute/analyze", `{"photos":[],"eventId":7,"walletAddress":"`+wallet+`"}`, nil)
	assert.JSONEq(t, `{"error":"Feedback text is required"}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/compute/analyze", `{"photos":[],"feedback":"x"}`, nil)
	assert.JSONEq(t, `{"error":"Event ID and wallet address are required"}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/contributions?wallet="+strings.ToLower(wallet), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tier":"Contributor"`)
}

func TestStorage_UploadDownloadInfo(t *testing.T) {
	env := newTestEnv(t)
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/storage/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var uploaded struct {
		RootHash string `json:"rootHash"`
		Size     int64  `json:"size"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))
	assert.Equal(t, storage.ContentHash(png), uploaded.RootHash)
	assert.Equal(t, int64(len(png)), uploaded.Size)

	w = env.do(http.MethodGet, "/api/storage/"+uploaded.RootHash, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, png, w.Body.Bytes())

	w = env.do(http.MethodGet, "/api/storage/"+uploaded.RootHash+"/info", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"finalized":true`)

	w = env.do(http.MethodGet, "/api/storage/"+storage.ContentHash([]byte("nope")), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"content not found"}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/storage/not-a-hash", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = env.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "proofpass_http_requests_total")

	w = env.do(http.MethodGet, "/api/rewards/tiers", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"amountWei":"100000000000000000000"`)

	w = env.do(http.MethodGet, "/api/ws?wallet=nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
