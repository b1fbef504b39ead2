package gateway

import (
	"net/http"
	"strings"

	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/auth"
	"github.com/example/shopfront/pkg/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionKey = "shop.session"

// sessionState tracks the session of one request. The session is written
// back only when something changed.
type sessionState struct {
	token string
	data  *models.Session
	dirty bool
}

func (g *Gateway) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		st := &sessionState{data: &models.Session{}}
		if token, err := c.Cookie(g.config.Session.CookieName); err == nil && token != "" {
			sess, err := g.svc.Sessions.Load(c.Request.Context(), token)
			switch {
			case err == nil:
				st.token, st.data = token, sess
			case apperr.KindOf(err) != apperr.KindNotFound:
				g.logger.Warn("Failed to load session", zap.Error(err))
			}
		}
		c.Set(sessionKey, st)
		c.Next()
	}
}

func currentSession(c *gin.Context) *sessionState {
	if v, ok := c.Get(sessionKey); ok {
		if st, ok := v.(*sessionState); ok {
			return st
		}
	}
	st := &sessionState{data: &models.Session{}}
	c.Set(sessionKey, st)
	return st
}

// currentUser rebuilds the logged in user from the session.
func currentUser(c *gin.Context) *models.User {
	s := currentSession(c).data
	return &models.User{ID: s.UserID, Username: s.Username, Email: s.Email, IsAdmin: s.IsAdmin}
}

func (g *Gateway) saveSession(c *gin.Context) {
	st := currentSession(c)
	if !st.dirty {
		return
	}
	if st.token == "" {
		st.token = auth.NewToken()
	}
	if err := g.svc.Sessions.Save(c.Request.Context(), st.token, st.data); err != nil {
		g.logger.Error("Failed to save session", zap.Error(err))
		return
	}
	st.dirty = false

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(g.config.Session.CookieName, st.token, int(g.config.Session.TTL.Seconds()), "/", "", g.config.Session.Secure, true)
}

// startSession replaces the current session with a logged in one. A fresh
// token is issued so a pre-login token cannot be reused.
func (g *Gateway) startSession(c *gin.Context, u *models.User) {
	st := currentSession(c)
	if st.token != "" {
		if err := g.svc.Sessions.Delete(c.Request.Context(), st.token); err != nil {
			g.logger.Warn("Failed to drop session", zap.Error(err))
		}
	}
	next := auth.NewSession(u)
	next.Flashes = st.data.Flashes
	st.token, st.data, st.dirty = "", next, true
}

func (g *Gateway) endSession(c *gin.Context) {
	st := currentSession(c)
	if st.token != "" {
		if err := g.svc.Sessions.Delete(c.Request.Context(), st.token); err != nil {
			g.logger.Warn("Failed to drop session", zap.Error(err))
		}
	}
	st.token, st.data, st.dirty = "", &models.Session{}, true
}

func (g *Gateway) flash(c *gin.Context, category, message string) {
	st := currentSession(c)
	st.data.AddFlash(category, message)
	st.dirty = true
}

func (g *Gateway) redirect(c *gin.Context, location string) {
	g.saveSession(c)
	c.Redirect(http.StatusFound, location)
}

func (g *Gateway) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentSession(c).data.LoggedIn() {
			c.Next()
			return
		}
		g.flash(c, "error", "Please log in first")
		g.redirect(c, "/login")
		c.Abort()
	}
}

func (g *Gateway) requireAdmin(jsonReply bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentSession(c).data.IsAdmin {
			c.Next()
			return
		}
		g.logger.Warn("Admin access denied",
			zap.String("path", c.Request.URL.Path),
			zap.Uint("user_id", currentSession(c).data.UserID))
		if jsonReply {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Access denied"})
			return
		}
		g.flash(c, "error", "Access denied")
		g.redirect(c, "/")
		c.Abort()
	}
}

// render executes a page template with the session and pending flashes.
func (g *Gateway) render(c *gin.Context, status int, name string, data gin.H) {
	st := currentSession(c)
	if data == nil {
		data = gin.H{}
	}
	if flashes := st.data.TakeFlashes(); len(flashes) > 0 {
		data["Flashes"] = flashes
		st.dirty = true
	}
	data["Session"] = st.data
	g.saveSession(c)
	c.HTML(status, name, data)
}

// fail maps a service error to a response. Expected failures become a
// flash on the page at back; anything else is logged and shown generically.
func (g *Gateway) fail(c *gin.Context, err error, back string) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindConflict, apperr.KindNotFound:
		g.flash(c, "error", capitalize(apperr.Message(err, "Request failed")))
		g.redirect(c, back)
	case apperr.KindAuthorization:
		g.flash(c, "error", "Access denied")
		g.redirect(c, "/")
	default:
		g.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		if apperr.Is(err, apperr.CodeCheckoutFailed) {
			g.flash(c, "error", "Your order could not be placed, please try again")
			g.redirect(c, back)
			return
		}
		g.render(c, http.StatusInternalServerError, "error.html", gin.H{
			"Title":   "Error",
			"Status":  http.StatusInternalServerError,
			"Message": "Something went wrong, please try again later.",
		})
	}
}

// failJSON is fail for the endpoints that reply with JSON.
func (g *Gateway) failJSON(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindAuthorization:
		status = http.StatusForbidden
	default:
		g.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{"success": false, "message": capitalize(apperr.Message(err, "Something went wrong"))})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
