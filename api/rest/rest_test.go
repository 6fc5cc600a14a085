package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/ventwave/ventboard/api/rest"
	"github.com/ventwave/ventboard/audit"
	"github.com/ventwave/ventboard/config"
	mw "github.com/ventwave/ventboard/middleware"
	"github.com/ventwave/ventboard/resource"
	"github.com/ventwave/ventboard/scheduler"
	"github.com/ventwave/ventboard/testutil"
	"github.com/ventwave/ventboard/vent/account"
	"github.com/ventwave/ventboard/vent/cosmetics"
	"github.com/ventwave/ventboard/vent/ledger"
	"github.com/ventwave/ventboard/vent/rant"
	"github.com/ventwave/ventboard/vent/reaction"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testAdminKey = "admin-secret"

type fakeAnnouncer struct{ got []string }

func (f *fakeAnnouncer) Announce(_ context.Context, msg string) error {
	f.got = append(f.got, msg)
	return nil
}

type env struct {
	r        *gin.Engine
	announce *fakeAnnouncer
	sched    *scheduler.Scheduler
}

func newEnv(t *testing.T, oauth config.OAuthConfig) *env {
	t.Helper()
	return newEnvWithGoogle(t, account.NewGoogle(oauth))
}

func newEnvWithGoogle(t *testing.T, google *account.Google) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	logger := testutil.Logger()
	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: time.Hour}
	feed := config.FeedConfig{ListLimit: 50, TrendingLimit: 20, TrendingWindow: 24 * time.Hour}

	journal := audit.New(db, 64, logger)
	t.Cleanup(func() { journal.Stop(context.Background()) })
	l := ledger.New(db, config.DefaultRewards(), journal, logger)
	accounts := account.New(db, 20, journal, logger)
	accounts.SetHashCost(bcrypt.MinCost)
	rants := rant.New(db, l, nil, feed, logger)
	trending := rant.NewTrending(db, c, rants, feed, logger)
	reactions := reaction.New(db, l, nil, logger)
	catalog := cosmetics.NewCatalog(db, c, logger)
	rl := resource.NewLoader("")
	require.NoError(t, rl.Load())
	_, err := catalog.Seed(context.Background(), rl.Items)
	require.NoError(t, err)
	store := cosmetics.NewStore(db, catalog, journal, logger)

	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)
	ann := &fakeAnnouncer{}

	authH := rest.NewAuthHandler(accounts, google, c, sec, "http://client.test", logger)
	rantH := rest.NewRantHandler(rants, trending, reactions)
	storeH := rest.NewStoreHandler(catalog, store)
	adminH := rest.NewAdminHandler(db, catalog, l, journal, sched, ann, "", logger)

	r := gin.New()
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
		authG.GET("/google", authH.GoogleStart)
		authG.GET("/google/callback", authH.GoogleCallback)

		rantsG := api.Group("/rants")
		rantsG.GET("", optional, rantH.List)
		rantsG.GET("/trending", rantH.Trending)
		rantsG.GET("/:id", optional, rantH.Get)
		rantsG.POST("", optional, rantH.Create)
		rantsG.POST("/:id/react", optional, rantH.React)
		rantsG.POST("/:id/reply", optional, rantH.Reply)
		rantsG.POST("/:id/reply/:replyId", optional, rantH.Reply)

		api.GET("/store/items", storeH.Items)

		meG := api.Group("/me", auth)
		meG.GET("", authH.Me)
		meG.GET("/inventory", storeH.Inventory)
		meG.POST("/buy", storeH.Buy)
		meG.POST("/equip", storeH.Equip)

		adminG := api.Group("/admin", mw.AdminKey(testAdminKey))
		adminG.GET("/stats", adminH.Stats)
		adminG.POST("/catalog/reseed", adminH.ReseedCatalog)
		adminG.POST("/users/:id/ve", adminH.AdjustVE)
		adminG.POST("/users/:id/ban", adminH.BanUser)
		adminG.GET("/journal", adminH.Journal)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
		adminG.POST("/scheduler/:name/run", adminH.RunSchedulerTask)
		adminG.POST("/announce", adminH.Announce)
	}
	return &env{r: r, announce: ann, sched: sched}
}

func (e *env) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// register signs up a user and returns its token and id.
func (e *env) register(t *testing.T, name string) (string, string) {
	t.Helper()
	w := e.do(http.MethodPost, "/api/auth/register",
		`{"username":"`+name+`","email":"`+name+`@example.com","password":"secret1"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	user := resp["user"].(map[string]interface{})
	return resp["token"].(string), user["id"].(string)
}

// ---- auth ----

func TestRegisterLoginSession(t *testing.T) {
	e := newEnv(t, config.OAuthConfig{})
	token, _ := e.register(t, "vera")

	w := e.do(http.MethodGet, "/api/auth/session", "", bearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	user := decode(t, w)["user"].(map[string]interface{})
	assert.Equal(t, "vera", user["username"])
	assert.Equal(t, float64(20), user["ventEnergy"])
	assert.NotContains(t, w.Body.String(), "passwordHash")

	w = e.do(http.MethodGet, "/api/auth/session", "", nil)
	assert.JSONEq(t, `{"user":null}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/auth/login", `{"email":"VERA@example.com","password":"secret1"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["token"])

	w = e.do(http.MethodPost, "/api/auth/login", `{"email":"vera@example.com","password":"nope12"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, w.Body.String())
}

func TestRegister_Errors(t *testing.T) {
	e := newEnv(t, config.OAuthConfig{})
	e.register(t, "dup")

	w := e.do(http.MethodPost, "/api/auth/register", `{"username":"other","email":"DUP@example.com","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"Email already in use"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/auth/register", `{"username":"short","email":"s@example.com","password":"123"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Password too short"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/auth/register", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutAndRefresh(t *testing.T) {
	e := newEnv(t, config.OAuthConfig{})
	token, _ := e.register(t, "rota")

	w := e.do(http.MethodPost, "/api/auth/refresh", "", bearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	fresh := decode(t, w)["token"].(string)
	require.NotEmpty(t, fresh)

	w = e.do(http.MethodGet, "/api/me", "", bearer(token))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodGet, "/api/me", "", bearer(fresh))
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodPost, "/api/auth/logout", "", bearer(fresh))
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodGet, "/api/me", "", bearer(fresh))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGoogle_Disabled(t *testing.T) {
	e := newEnv(t, config.OAuthConfig{})
	w := e.do(http.MethodGet, "/api/auth/google", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGoogle_StartAndBadState(t *testing.T) {
	e := newEnv(t, config.OAuthConfig{
		GoogleClientID: "id", GoogleClientSecret: "secret", GoogleCallbackURL: "http://api.test/cb",
	})
	w := e.do(http.MethodGet, "/api/auth/google", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "state=")

	w = e.do(http.MethodGet, "/api/auth/google/callback?state=forged&code=x", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://client.test/#error=state", w.Header().Get("Location"))
}

func TestGoogle_StateIsSingleUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			_, _ = w.Write([]byte(`{"id":"g-1","email":"g1@example.com","verified_email":true,"name":"Gee One"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	google := account.NewGoogle(config.OAuthConfig{
		GoogleClientID: "id", GoogleClientSecret: "secret", GoogleCallbackURL: "http://api.test/cb",
	}).WithEndpoints(oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}, srv.URL+"/userinfo")
	e := newEnvWithGoogle(t, google)

	w := e.do(http.MethodGet, "/api/auth/google", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	consent, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := consent.Query().Get("state")
	require.NotEmpty(t, state)

	callback := "/api/auth/google/callback?code=c&state=" + url.QueryEscape(state)
	w = e.do(http.MethodGet, callback, "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "http://client.test/#token=")

	w = e.do(http.MethodGet, callback, "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://client.test/#error=state", w.Header().Get("Location"))
}

// ---- rants ----

func TestCreateRant_Guest(t *testing.T) {
	e := newEnv(t, config.OAuthConfig{})
	w := e.do(http.MethodPost, "/api/rants", `{"text":"aaaaaaaaaa","authorMode":"public"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	r := decode(t, w)["rant"].(map[string]interface{})
	assert.Equal(t, "anonymous", r["authorMode"])
	assert.NotEmpty(t, r["anonAlias"])
	assert.Equal(t, []interface{}{}, r["replies"])

	w = e.do(http.MethodPost, "/api/rants", `{"text":"short"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Rant too short"}`, w.Body.String())
}

func TestCreateRant_PublicPaysReward(t *testing.T) {
	e := newEnv(t, config.OAuthConfig{})
	token, _ := e.register(t, "poster")

	w := e.do(http.MethodPost, "/api/rants", `{"text":"this is my public rant","authorMode":"public","tags":["Work"]}`, bearer(token))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	r := decode(t, w)["rant"].(map[string]interface{})
	assert.Equal(t, "public", r["authorMode"])
	assert.Equal(t, "poster", r["authorName"])
	assert.Equal(t, []interface{}{"work"}, r["tags"])

	w = e.do(http.MethodGet, "/api/me", "", bearer(token))
	user := decode(t, w)["user"].(map[string]interface{})
	assert.Equal(t, float64(30), user["ventEnergy"])

	w = e.do(http.MethodGet, "/api/rants", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["rants"], 1)
}

func TestGetRant_MyReaction(t *testing.T) {
	e := newEnv(t, config.OAuthConfig{})
	w := e.do(http.MethodPost, "/api/rants", `{"text":"who reacted to this"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["rant"].(map[string]interface{})["id"].(string)

	w = e.do(http.MethodPost, "/api/rants/"+id+"/react", `{"key":"rage"}`, map[string]string{rest.GuestIDHeader: "g-mine"})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/api/rants/"+id, "", map[string]string{rest.GuestIDHeader: "g-mine"})
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, "rage", out["myReaction"])
	assert.Equal(t, float64(0), out["rant"].(map[string]interface{})["score24h"])

	w = e.do(http.MethodGet, "/api/rants/"+id, "", map[string]string{rest.GuestIDHeader: "g-other"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["myReaction"])

	w = e.do(http.MethodGet, "/api/rants/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["myReaction"])
}

func TestReact(t *testing.T) {
	e := newEnv(t, config.OAuthConfig{})
	w := e.do(http.MethodPost, "/api/rants", `{"text":"react to this one please"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["rant"].(map[string]interface{})["id"].(string)
	guest := map[string]string{rest.GuestIDHeader: "guest-1"}

	w = e.do(http.MethodPost, "/api/rants/"+id+"/react", `{"key":"hug"}`, guest)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reactions := decode(t, w)["rant"].(map[string]interface{})["reactions"].(map[string]interface{})
	assert.Equal(t, float64(1), reactions["hug"])

	w = e.do(http.MethodPost, "/api/rants/"+id+"/react", `{"key":"lol"}`, guest)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	reactions = resp["rant"].(map[string]interface{})["reactions"].(map[string]interface{})
	assert.Equal(t, float64(0), reactions["hug"])
	assert.Equal(t, float64(1), reactions["lol"])
	assert.Equal(t, "switched", resp["reaction"].(map[string]interface{})["outcome"])

	w = e.do(http.MethodPost, "/api/rants/"+id+"/react", `{"key":"lol"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing identity"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/rants/"+id+"/react", `{"key":"wow"}`, guest)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid reaction"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/rants/missing/react", `{"key":"hug"}`, guest)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReplies(t *testing.T) {
	e := newEnv(t, config.OAuthConfig{})
	w := e.do(http.MethodPost, "/api/rants", `{"text":"a rant worth replying to"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["rant"].(map[string]interface{})["id"].(string)

	w = e.do(http.MethodPost, "/api/rants/"+id+"/reply", `{"text":"first"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	replies := decode(t, w)["rant"].(map[string]interface{})["replies"].([]interface{})
	require.Len(t, replies, 1)
	parent := replies[0].(map[string]interface{})["id"].(string)

	w = e.do(http.MethodPost, "/api/rants/"+id+"/reply/"+parent, `{"text":"nested"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/api/rants/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	r := decode(t, w)["rant"].(map[string]interface{})
	assert.Equal(t, float64(2), r["replyCount"])
	top := r["replies"].([]interface{})[0].(map[string]interface{})
	child := top["replies"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "nested", child["text"])

	w = e.do(http.MethodPost, "/api/rants/"+id+"/reply/nope", `{"text":"lost"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Parent reply not found"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/rants/"+id+"/reply", `{"text":"   "}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Reply required"}`, w.Body.String())

	w = e.do(http.MethodGet, "/api/rants/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, w.Body.String())
}

func TestTrending(t *testing.T) {
	e := newEnv(t, config.OAuthConfig{})
	w := e.do(http.MethodGet, "/api/rants/trending", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"rants":[]}`, w.Body.String())
}

// ---- store ----

func TestStoreFlow(t *testing.T) {
	e := newEnv(t, config.OAuthConfig{})
	token, userID := e.register(t, "shopper")
	admin := map[string]string{mw.AdminKeyHeader: testAdminKey}

	w := e.do(http.MethodGet, "/api/store/items", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 16)

	w = e.do(http.MethodPost, "/api/me/buy", `{"itemKey":"theme.noir"}`, bearer(token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Not enough VE"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/admin/users/"+userID+"/ve", `{"delta":200,"note":"gift"}`, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ventEnergy":220}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/me/equip", `{"slot":"rantTheme","itemKey":"theme.noir"}`, bearer(token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Not owned"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/me/buy", `{"itemKey":"theme.noir"}`, bearer(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	user := decode(t, w)["user"].(map[string]interface{})
	assert.Equal(t, float64(100), user["ventEnergy"])

	w = e.do(http.MethodPost, "/api/me/buy", `{"itemKey":"theme.noir"}`, bearer(token))
	assert.JSONEq(t, `{"error":"Already owned"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/me/equip", `{"slot":"nameGlow","itemKey":"theme.noir"}`, bearer(token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Wrong item type for slot"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/me/equip", `{"slot":"hat","itemKey":"theme.noir"}`, bearer(token))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/me/equip", `{"slot":"rantTheme","itemKey":"theme.noir"}`, bearer(token))
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/api/me/inventory", "", bearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	inv := decode(t, w)
	assert.Equal(t, "theme.noir", inv["equipped"].(map[string]interface{})["rantTheme"])
	require.Len(t, inv["inventory"], 1)

	w = e.do(http.MethodPost, "/api/me/buy", `{"itemKey":"ghost"}`, bearer(token))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Item not found"}`, w.Body.String())

	w = e.do(http.MethodGet, "/api/me/inventory", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ---- admin ----

func TestAdmin_KeyRequired(t *testing.T) {
	e := newEnv(t, config.OAuthConfig{})
	w := e.do(http.MethodGet, "/api/admin/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = e.do(http.MethodGet, "/api/admin/stats", "", map[string]string{mw.AdminKeyHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmin_Endpoints(t *testing.T) {
	e := newEnv(t, config.OAuthConfig{})
	_, userID := e.register(t, "target")
	admin := map[string]string{mw.AdminKeyHeader: testAdminKey}

	w := e.do(http.MethodGet, "/api/admin/stats", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	counts := decode(t, w)["counts"].(map[string]interface{})
	assert.Equal(t, float64(1), counts["users"])
	assert.Equal(t, float64(16), counts["items"])

	w = e.do(http.MethodPost, "/api/admin/catalog/reseed", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":16,"source":"builtin"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/admin/users/"+userID+"/ve", `{"delta":-500}`, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(http.MethodPost, "/api/admin/users/nobody/ve", `{"delta":5}`, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodPost, "/api/admin/users/"+userID+"/ban", `{"ban":true}`, admin)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodPost, "/api/auth/login", `{"email":"target@example.com","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/admin/announce", `{"message":" hello "}`, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"hello"}, e.announce.got)
	w = e.do(http.MethodPost, "/api/admin/announce", `{"message":""}`, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ran := 0
	e.sched.AddTicker("counter", time.Hour, func() { ran++ })
	w = e.do(http.MethodPost, "/api/admin/scheduler/counter/run", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ran)
	w = e.do(http.MethodPost, "/api/admin/scheduler/nope/run", "", admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodGet, "/api/admin/scheduler", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["tasks"], 1)

	w = e.do(http.MethodGet, "/api/admin/journal?user="+userID, "", admin)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAdmin_BannedUserCannotRefresh(t *testing.T) {
	e := newEnv(t, config.OAuthConfig{})
	token, userID := e.register(t, "exiled")
	admin := map[string]string{mw.AdminKeyHeader: testAdminKey}

	w := e.do(http.MethodPost, "/api/admin/users/"+userID+"/ban", `{"ban":true}`, admin)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodPost, "/api/auth/refresh", "", bearer(token))
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Account banned", decode(t, w)["error"])
	w = e.do(http.MethodPost, "/api/auth/refresh", "", bearer(token))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/admin/users/"+userID+"/ban", `{"ban":false}`, admin)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodPost, "/api/auth/refresh", "", bearer(token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["token"])
}

func TestAdmin_BanRequiresFlag(t *testing.T) {
	e := newEnv(t, config.OAuthConfig{})
	_, userID := e.register(t, "stays")
	admin := map[string]string{mw.AdminKeyHeader: testAdminKey}
	path := "/api/admin/users/" + userID + "/ban"

	w := e.do(http.MethodPost, path, `{"ban":true}`, admin)
	require.Equal(t, http.StatusOK, w.Code)

	for _, body := range []string{`{"ban":"yes"}`, `{}`, `not json`, ""} {
		w = e.do(http.MethodPost, path, body, admin)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	w = e.do(http.MethodPost, "/api/admin/users/nobody/ban", `{"ban":true}`, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodPost, "/api/auth/login", `{"email":"stays@example.com","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
