package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/simplenotify/internal/api"
	"github.com/charlesng35/simplenotify/internal/app"
	iauth "github.com/charlesng35/simplenotify/internal/auth"
	"github.com/charlesng35/simplenotify/internal/cache"
	sharedtestutil "github.com/charlesng35/simplenotify/internal/database/testutil"
	"github.com/charlesng35/simplenotify/internal/middleware"
	"github.com/charlesng35/simplenotify/internal/models"
	"github.com/charlesng35/simplenotify/internal/monitoring"
	"github.com/charlesng35/simplenotify/internal/monitoring/checks"
	"github.com/charlesng35/simplenotify/internal/push"
	"github.com/charlesng35/simplenotify/internal/services"
	"github.com/charlesng35/simplenotify/pkg/response"
)

const testJWTSecret = "test-suite-super-secret-key-32-bytes!!"

const testPublicKey = "BEl62iUYgUivxIkv69yViEuiBIa-Ib9-SkvMeAtA3LFgDzkrxZJjSgSnfckjBJuBkr3qBUYIHBQFLXYp5Nksh8U"

// FakeSender records deliveries instead of calling a push service.
type FakeSender struct {
	mu       sync.Mutex
	sent     []push.Subscription
	payloads [][]byte
	// Errors maps an endpoint to the error returned when delivering to it.
	Errors map[string]error
}

// Send implements push.Sender.
func (f *FakeSender) Send(_ context.Context, sub push.Subscription, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.Errors[sub.Endpoint]; ok {
		return err
	}
	f.sent = append(f.sent, sub)
	f.payloads = append(f.payloads, append([]byte(nil), payload...))
	return nil
}

// Sent returns the subscriptions that received a payload.
func (f *FakeSender) Sent() []push.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]push.Subscription(nil), f.sent...)
}

// LastPayload decodes the most recent payload into a generic map.
func (f *FakeSender) LastPayload(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.payloads, "no payload delivered")
	var out map[string]any
	require.NoError(t, json.Unmarshal(f.payloads[len(f.payloads)-1], &out))
	return out
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T          *testing.T
	DB         *gorm.DB
	Router     *gin.Engine
	JWT        *iauth.JWTService
	Config     *app.Config
	Services   *api.Services
	Sender     *FakeSender
	Monitoring *monitoring.Module
}

type envOptions struct {
	withoutPush bool
	rateLimit   int
	mutate      func(*app.Config)
}

// EnvOption customises the test environment.
type EnvOption func(*envOptions)

// WithoutPush leaves VAPID credentials unset so push endpoints report 503.
func WithoutPush() EnvOption {
	return func(o *envOptions) { o.withoutPush = true }
}

// WithRateLimit enables the API rate limiter with the given per-minute budget.
func WithRateLimit(requests int) EnvOption {
	return func(o *envOptions) { o.rateLimit = requests }
}

// WithConfig mutates the generated config before the router is built.
func WithConfig(fn func(*app.Config)) EnvOption {
	return func(o *envOptions) { o.mutate = fn }
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	options := envOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSecret := testJWTSecret
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         jwtSecret,
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{Secret: jwtSecret, Issuer: "test-suite", TTL: time.Hour},
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
	if !options.withoutPush {
		cfg.Push = app.PushConfig{
			VAPID: app.VAPIDConfig{PrivateKey: "test-private-key", PublicKey: testPublicKey, Email: "ops@example.com"},
			TTL:   60,
		}
	}
	if options.rateLimit > 0 {
		cfg.Server.RateLimit = app.RateLimitConfig{Enabled: true, Requests: options.rateLimit, Window: time.Minute}
	}
	if options.mutate != nil {
		options.mutate(cfg)
	}

	store := cache.NewDatabaseStore(db)
	sender := &FakeSender{Errors: map[string]error{}}

	svc, err := api.BuildServices(db, store, sender, cfg.Push.ClientConfig())
	require.NoError(t, err)

	mod, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)
	mod.Health().RegisterReadiness(checks.Database(db, time.Second))
	mod.Health().RegisterReadiness(checks.Push(svc.Dispatcher))

	router, err := api.NewRouter(jwtSvc, cfg, svc, api.Options{
		RateStore:  middleware.NewRateStore(store),
		Monitoring: mod,
	})
	require.NoError(t, err)

	return &Env{
		T:          t,
		DB:         db,
		Router:     router,
		JWT:        jwtSvc,
		Config:     cfg,
		Services:   svc,
		Sender:     sender,
		Monitoring: mod,
	}
}

// CreateUser inserts an active user with a random username.
func (e *Env) CreateUser() *models.User {
	e.T.Helper()

	username := "user-" + uuid.NewString()
	user, err := e.Services.Users.Create(context.Background(), services.CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
	})
	require.NoError(e.T, err)
	return user
}

// Token issues an access token for the principal.
func (e *Env) Token(principal models.OwnerRef) string {
	e.T.Helper()

	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{Principal: principal})
	require.NoError(e.T, err)
	return token
}

// SignedToken signs raw claims with the suite secret, bypassing the issuer's principal checks.
func (e *Env) SignedToken(kind string, uid uint) string {
	e.T.Helper()

	now := time.Now()
	claims := iauth.Claims{
		UserID: fmt.Sprint(uid),
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-suite",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(e.T, err)
	return signed
}

// SubscriptionPayload builds a subscribe request body for endpoint.
func SubscriptionPayload(endpoint string, metadata map[string]any) map[string]any {
	body := map[string]any{
		"endpoint": endpoint,
		"keys": map[string]string{
			"p256dh": "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM",
			"auth":   "tBHItJI5svbpez7KI4CCXg",
		},
	}
	if metadata != nil {
		body["metadata"] = metadata
	}
	return body
}

// Subscribe registers endpoint for the token holder and returns the stored subscription.
func (e *Env) Subscribe(token, endpoint string) services.SubscriptionDTO {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/notifications/subscription", SubscriptionPayload(endpoint, nil), token)
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	var dto services.SubscriptionDTO
	DecodeInto(e.T, resp.Data, &dto)
	require.NotZero(e.T, dto.ID)
	return dto
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = "192.0.2.10:40000"

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
