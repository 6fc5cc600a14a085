package rest

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ventwave/ventboard/cache"
	"github.com/ventwave/ventboard/config"
	mw "github.com/ventwave/ventboard/middleware"
	"github.com/ventwave/ventboard/model"
	"github.com/ventwave/ventboard/vent/account"
)

const oauthStateTTL = 10 * time.Minute

func oauthStateKey(state string) string { return "oauth:state:" + state }

// AuthHandler handles authentication REST endpoints.
type AuthHandler struct {
	accounts *account.Service
	google   *account.Google
	cache    cache.Cache
	sec      config.SecurityConfig
	origin   string
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. google may be nil when Google
// sign-in is not configured.
func NewAuthHandler(accounts *account.Service, google *account.Google, c cache.Cache, sec config.SecurityConfig, clientOrigin string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, google: google, cache: c, sec: sec, origin: clientOrigin, logger: logger}
}

// issue signs a token for userID and stores the session marker.
func (h *AuthHandler) issue(ctx context.Context, userID string) (string, error) {
	token, err := mw.GenerateToken(userID, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		return "", err
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.cache.Set(cacheCtx, mw.SessionKey(token), userID, h.sec.JWTTTLH); err != nil {
		return "", err
	}
	return token, nil
}

func (h *AuthHandler) respondSession(c *gin.Context, status int, u *model.User) {
	token, err := h.issue(c.Request.Context(), u.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, gin.H{"token": token, "user": u})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register.
// The new account is signed in immediately.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing fields")
		return
	}
	u, err := h.accounts.Register(c.Request.Context(), account.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondSession(c, http.StatusOK, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing fields")
		return
	}
	u, err := h.accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondSession(c, http.StatusOK, u)
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(mw.GetToken(c)))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Refresh handles POST /api/auth/refresh.
// The presented token stops working once the new one is issued. Banned
// accounts cannot refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	userID := mw.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if _, err := h.accounts.Active(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	token, err := h.issue(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(mw.GetToken(c)))
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Session handles GET /api/auth/session.
// Guests and stale sessions get {"user": null}.
func (h *AuthHandler) Session(c *gin.Context) {
	userID := mw.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	u, err := h.accounts.Get(c.Request.Context(), userID)
	if err != nil {
		if status, _ := statusOf(err); status == http.StatusNotFound {
			c.JSON(http.StatusOK, gin.H{"user": nil})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// Me handles GET /api/me.
func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.accounts.Get(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// GoogleStart handles GET /api/auth/google.
// It stores a one-time state value and redirects to the consent page.
func (h *AuthHandler) GoogleStart(c *gin.Context) {
	if h.google == nil {
		respondError(c, account.ErrGoogleDisabled)
		return
	}
	state := uuid.NewString()
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if _, err := h.cache.SetNX(ctx, oauthStateKey(state), "1", oauthStateTTL); err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, h.google.AuthCodeURL(state))
}

// GoogleCallback handles GET /api/auth/google/callback.
// On success the browser is sent back to the client with the token in the
// URL fragment; on failure with an error code.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		respondError(c, account.ErrGoogleDisabled)
		return
	}
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		h.redirect(c, url.Values{"error": {"google"}})
		return
	}

	// The state is single use: only the request that removes it proceeds.
	ctx := c.Request.Context()
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	_, err := h.cache.GetDel(cacheCtx, oauthStateKey(state))
	cancel()
	if err != nil {
		if !cache.IsNotFound(err) {
			h.logger.Warn("oauth state lookup failed", zap.Error(err))
		}
		h.redirect(c, url.Values{"error": {"state"}})
		return
	}

	profile, err := h.google.Exchange(ctx, code)
	if err != nil {
		h.logger.Warn("google exchange failed", zap.Error(err))
		h.redirect(c, url.Values{"error": {"google"}})
		return
	}
	u, err := h.accounts.SignInGoogle(ctx, profile)
	if err != nil {
		h.logger.Warn("google sign-in failed", zap.String("google_id", profile.ID), zap.Error(err))
		h.redirect(c, url.Values{"error": {"google"}})
		return
	}
	token, err := h.issue(ctx, u.ID)
	if err != nil {
		h.logger.Error("issue token failed", zap.Error(err))
		h.redirect(c, url.Values{"error": {"google"}})
		return
	}
	h.redirect(c, url.Values{"token": {token}})
}

func (h *AuthHandler) redirect(c *gin.Context, v url.Values) {
	c.Redirect(http.StatusFound, h.origin+"/#"+v.Encode())
}
