package folio

import (
	"context"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/eringen/folio/content"
)

const maxContactMessage = 5000

// ContactMessage is a visitor message from the contact form.
type ContactMessage struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Message string `json:"message" form:"message"`
}

// Validate trims the fields and checks they are present and well formed.
func (m *ContactMessage) Validate() error {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Message = strings.TrimSpace(m.Message)
	switch {
	case m.Name == "":
		return &content.ValidationError{Field: "name", Reason: "required"}
	case m.Email == "":
		return &content.ValidationError{Field: "email", Reason: "required"}
	case m.Message == "":
		return &content.ValidationError{Field: "message", Reason: "required"}
	case utf8.RuneCountInString(m.Message) > maxContactMessage:
		return &content.ValidationError{Field: "message", Reason: "too long"}
	}
	addr, err := mail.ParseAddress(m.Email)
	if err != nil || addr.Address != m.Email {
		return &content.ValidationError{Field: "email", Reason: "not a valid address"}
	}
	return nil
}

// Mailer delivers contact form messages to the site owner.
type Mailer interface {
	Send(ctx context.Context, msg ContactMessage) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	Log *logrus.Logger
}

func (m LogMailer) Send(_ context.Context, msg ContactMessage) error {
	m.Log.WithFields(logrus.Fields{
		"name":  msg.Name,
		"email": msg.Email,
	}).Info("contact message: " + msg.Message)
	return nil
}

func (a *App) handleContact(c echo.Context) error {
	ip := c.RealIP()
	if !a.contactLimiter.Check(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many messages, try again later")
	}
	var msg ContactMessage
	if err := c.Bind(&msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed contact request")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	a.contactLimiter.Record(ip)
	if err := a.Mailer.Send(c.Request().Context(), msg); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}
