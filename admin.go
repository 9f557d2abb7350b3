package folio

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Password string `json:"password" form:"password"`
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	CSRF          string `json:"csrf"`
}

func (a *App) handleLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts, try again later")
	}
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed login request")
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(a.Config.AdminPassword)) != 1 {
		a.loginLimiter.Record(ip)
		a.Log.WithField("ip", ip).Warn("admin login failed")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid password")
	}
	if err := setAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{Authenticated: true, CSRF: CsrfToken(c)})
}

func handleLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// handleSession reports whether the caller is signed in and hands out the
// CSRF token the admin API expects in X-CSRF-Token.
func handleSession(c echo.Context) error {
	return c.JSON(http.StatusOK, sessionResponse{Authenticated: IsAdmin(c), CSRF: CsrfToken(c)})
}
