package middlewares

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mmdatafocus/mpms/config"
	"github.com/mmdatafocus/mpms/models"
	"github.com/mmdatafocus/mpms/utils"
)

const (
	SessionCookieName = "mpms_session"

	sessionKey = "mpms.session"
)

type SessionOptions struct {
	Secret string
	// Secure marks the cookie HTTPS-only (production).
	Secure bool
}

// Session is the signed-in user of the current request.
type Session struct {
	User  *models.User
	Claim *utils.SessionClaim
}

func RevokedSessionKey(sid string) string {
	return "RevokedSession:" + sid
}

// AuthMiddleware resolves the session cookie, when present, to a user.
// Requests without a valid session continue anonymously.
func AuthMiddleware(opts SessionOptions, db *gorm.DB, cache *config.RedisCache, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(SessionCookieName)
		if err != nil || raw == "" {
			c.Next()
			return
		}

		claim, err := utils.ParseSessionToken(opts.Secret, raw, time.Now())
		if err != nil {
			ClearSessionCookie(c, opts)
			c.Next()
			return
		}

		ctx := c.Request.Context()
		revoked, err := cache.Exists(ctx, RevokedSessionKey(claim.Id))
		if err != nil {
			config.LogError(logger, "middlewares", "AuthMiddleware", "check revoked session", claim.Id, err)
		}
		if revoked {
			ClearSessionCookie(c, opts)
			c.Next()
			return
		}

		user, err := models.GetUserCached(ctx, db, cache, claim.ID)
		if err != nil {
			if !errors.Is(err, utils.ErrorRecordNotFound) {
				config.LogError(logger, "middlewares", "AuthMiddleware", "load session user", claim.ID, err)
			}
			ClearSessionCookie(c, opts)
			c.Next()
			return
		}

		ctx = utils.SetUserIdInContext(ctx, user.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(sessionKey, &Session{User: user, Claim: claim})
		c.Next()
	}
}

func CurrentSession(c *gin.Context) *Session {
	raw, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	session, _ := raw.(*Session)
	return session
}

// CurrentUser is nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	if session := CurrentSession(c); session != nil {
		return session.User
	}
	return nil
}

// SetSessionCookie persists remembered sessions for the token lifetime;
// other sessions end with the browser.
func SetSessionCookie(c *gin.Context, opts SessionOptions, token string, lifetime time.Duration, remember bool) {
	maxAge := 0
	if remember {
		maxAge = int(lifetime.Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token, maxAge, "/", "", opts.Secure, true)
}

func ClearSessionCookie(c *gin.Context, opts SessionOptions) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", opts.Secure, true)
}
