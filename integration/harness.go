package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	apirest "github.com/ventwave/ventboard/api/rest"
	"github.com/ventwave/ventboard/api/sse"
	"github.com/ventwave/ventboard/audit"
	"github.com/ventwave/ventboard/cache"
	"github.com/ventwave/ventboard/config"
	"github.com/ventwave/ventboard/metrics"
	mw "github.com/ventwave/ventboard/middleware"
	"github.com/ventwave/ventboard/plugin/hook"
	"github.com/ventwave/ventboard/resource"
	"github.com/ventwave/ventboard/scheduler"
	"github.com/ventwave/ventboard/testutil"
	"github.com/ventwave/ventboard/vent/account"
	"github.com/ventwave/ventboard/vent/cosmetics"
	"github.com/ventwave/ventboard/vent/ledger"
	"github.com/ventwave/ventboard/vent/rant"
	"github.com/ventwave/ventboard/vent/reaction"
)

const AdminKey = "integration-admin-key"

// TestServer wraps a real HTTP server with every subsystem wired together.
type TestServer struct {
	DB       *gorm.DB
	Cache    cache.Cache
	PubSub   cache.PubSub
	Hooks    *hook.HookCenter
	Ledger   *ledger.Ledger
	Trending *rant.Trending
	Sched    *scheduler.Scheduler
	Journal  *audit.Service
	Server   *httptest.Server
	URL      string // http://127.0.0.1:<port>
	Sec      config.SecurityConfig
}

// NewTestServer creates a fully wired server for integration testing.
// It mirrors the dependency wiring in main.go.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// ---- Infrastructure ----
	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        72 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}
	feed := config.FeedConfig{
		ListLimit:       50,
		TrendingLimit:   20,
		TrendingWindow:  24 * time.Hour,
		TrendingRefresh: time.Hour,
		BlockedWords:    []string{"buy followers"},
	}
	rewards := config.DefaultRewards()

	journal := audit.New(db, 256, logger)

	// ---- Services ----
	hooks := hook.NewHookCenter(logger)
	l := ledger.New(db, rewards, journal, logger)
	accounts := account.New(db, int64(rewards.StarterBalance), journal, logger)
	accounts.SetHashCost(bcrypt.MinCost)
	rants := rant.New(db, l, hooks, feed, logger)
	trending := rant.NewTrending(db, c, rants, feed, logger)
	reactions := reaction.New(db, l, hooks, logger)
	catalog := cosmetics.NewCatalog(db, c, logger)
	store := cosmetics.NewStore(db, catalog, journal, logger)
	sseH := sse.NewHandler(pubsub, logger)

	trending.RegisterHooks(hooks)
	sseH.RegisterHooks(hooks)
	rant.RegisterWordFilter(hooks, feed.BlockedWords)

	// Built-in catalog (no data directory in tests).
	res := resource.NewLoader("")
	require.NoError(t, res.Load())
	_, err := catalog.Seed(context.Background(), res.Items)
	require.NoError(t, err)

	sched := scheduler.New(logger)
	sched.AddTicker("trending_rebuild", feed.TrendingRefresh, func() {
		_, _ = trending.Rebuild(context.Background())
	})

	// ---- Gin HTTP Server ----
	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger), metrics.Middleware())
	r.Use(mw.RateLimit(rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// ---- REST API routes (mirrors main.go) ----
	authH := apirest.NewAuthHandler(accounts, nil, c, sec, "http://client.test", logger)
	rantH := apirest.NewRantHandler(rants, trending, reactions)
	storeH := apirest.NewStoreHandler(catalog, store)
	adminH := apirest.NewAdminHandler(db, catalog, l, journal, sched, sseH, "", logger)

	auth := mw.Auth(sec, c)
	optional := mw.OptionalAuth(sec, c)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/register", authH.Register)
		authG.POST("/login", authH.Login)
		authG.POST("/logout", auth, authH.Logout)
		authG.POST("/refresh", auth, authH.Refresh)
		authG.GET("/session", optional, authH.Session)

		rantsG := api.Group("/rants")
		rantsG.GET("", optional, rantH.List)
		rantsG.GET("/trending", rantH.Trending)
		rantsG.GET("/:id", optional, rantH.Get)
		rantsG.POST("", optional, rantH.Create)
		rantsG.POST("/:id/react", optional, rantH.React)
		rantsG.POST("/:id/reply", optional, rantH.Reply)
		rantsG.POST("/:id/reply/:replyId", optional, rantH.Reply)

		api.GET("/store/items", storeH.Items)

		meG := api.Group("/me")
		meG.Use(auth)
		meG.GET("", authH.Me)
		meG.GET("/inventory", storeH.Inventory)
		meG.POST("/buy", storeH.Buy)
		meG.POST("/equip", storeH.Equip)

		adminG := api.Group("/admin")
		adminG.Use(mw.AdminKey(AdminKey))
		adminG.GET("/stats", adminH.Stats)
		adminG.POST("/users/:id/ve", adminH.AdjustVE)
		adminG.GET("/journal", adminH.Journal)
		adminG.POST("/scheduler/:name/run", adminH.RunSchedulerTask)
		adminG.POST("/announce", adminH.Announce)
	}

	// ---- SSE ----
	r.GET("/sse", sseH.ServeSSE)

	// ---- Start server ----
	server := httptest.NewServer(r)

	return &TestServer{
		DB:       db,
		Cache:    c,
		PubSub:   pubsub,
		Hooks:    hooks,
		Ledger:   l,
		Trending: trending,
		Sched:    sched,
		Journal:  journal,
		Server:   server,
		URL:      server.URL,
		Sec:      sec,
	}
}

// Close shuts down the test server and background workers.
func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.Sched.Stop()
	ts.Journal.Stop(context.Background())
}

// --- HTTP helpers ---

// Do sends a request with an optional JSON body, Bearer token and headers.
func (ts *TestServer) Do(t *testing.T, method, path string, body interface{}, token string, headers map[string]string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, bodyReader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.Do(t, http.MethodPost, path, body, token, nil)
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.Do(t, http.MethodGet, path, nil, token, nil)
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// ExpectJSON checks the status code and decodes the body.
func ExpectJSON(t *testing.T, resp *http.Response, status int) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	ReadJSON(t, resp, &out)
	require.Equal(t, status, resp.StatusCode, "body: %v", out)
	return out
}

// --- Auth helpers ---

// Register signs up a fresh user and returns the token and user id.
func (ts *TestServer) Register(t *testing.T, username string) (token, userID string) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/register", map[string]string{
		"username": username,
		"email":    strings.ToLower(username) + "@example.com",
		"password": "password1",
	}, "")
	out := ExpectJSON(t, resp, http.StatusOK)
	token = out["token"].(string)
	userID = out["user"].(map[string]interface{})["id"].(string)
	return
}

// Balance reads the user's Vent Energy through /api/me.
func (ts *TestServer) Balance(t *testing.T, token string) int64 {
	t.Helper()
	out := ExpectJSON(t, ts.Get(t, "/api/me", token), http.StatusOK)
	return int64(out["user"].(map[string]interface{})["ventEnergy"].(float64))
}

// GrantVE credits a user through the admin endpoint.
func (ts *TestServer) GrantVE(t *testing.T, userID string, delta int64) {
	t.Helper()
	resp := ts.Do(t, http.MethodPost, "/api/admin/users/"+userID+"/ve",
		map[string]interface{}{"delta": delta, "note": "test"}, "", map[string]string{mw.AdminKeyHeader: AdminKey})
	ExpectJSON(t, resp, http.StatusOK)
}

// --- SSE client ---

// SSEEvent is one server-sent event.
type SSEEvent struct {
	Name string
	Data string
}

// SSEClient reads the live feed in a background goroutine.
type SSEClient struct {
	t      *testing.T
	cancel context.CancelFunc
	body   io.ReadCloser
	readCh chan SSEEvent
}

// ConnectSSE opens /sse and waits for the connected event.
func (ts *TestServer) ConnectSSE(t *testing.T) *SSEClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sse", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		require.NoError(t, err, "SSE connect failed")
	}
	sc := &SSEClient{t: t, cancel: cancel, body: resp.Body, readCh: make(chan SSEEvent, 256)}
	go sc.readLoop()
	sc.RecvName("connected", 5*time.Second)
	return sc
}

func (sc *SSEClient) readLoop() {
	defer close(sc.readCh)
	br := bufio.NewReader(sc.body)
	var ev SSEEvent
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if ev.Name != "" || ev.Data != "" {
				sc.readCh <- ev
			}
			ev = SSEEvent{}
		case strings.HasPrefix(line, "event: "):
			ev.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.Data = strings.TrimPrefix(line, "data: ")
		}
	}
}

// RecvName reads events until one with the given name arrives.
func (sc *SSEClient) RecvName(name string, timeout time.Duration) SSEEvent {
	sc.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-sc.readCh:
			if !ok {
				sc.t.Fatalf("SSE stream closed while waiting for %q", name)
			}
			if ev.Name == name {
				return ev
			}
		case <-deadline:
			sc.t.Fatalf("timed out waiting for SSE event %q", name)
		}
	}
}

// RecvFeed reads feed events until one of the given type arrives.
func (sc *SSEClient) RecvFeed(eventType string, timeout time.Duration) sse.FeedEvent {
	sc.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ev := sc.RecvName(sse.FeedChannel, time.Until(deadline))
		var fe sse.FeedEvent
		require.NoError(sc.t, json.Unmarshal([]byte(ev.Data), &fe))
		if fe.Type == eventType {
			return fe
		}
	}
	sc.t.Fatalf("timed out waiting for feed event %q", eventType)
	return sse.FeedEvent{}
}

// Close ends the stream.
func (sc *SSEClient) Close() {
	sc.cancel()
	_ = sc.body.Close()
}

// UniqueID returns a short unique string suitable for usernames.
var testCounter uint64

func UniqueID(prefix string) string {
	n := atomic.AddUint64(&testCounter, 1)
	return fmt.Sprintf("%s%d%d", prefix, time.Now().UnixNano()%10000, n)
}
