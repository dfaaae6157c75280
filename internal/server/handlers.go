// Package server provides the HTTP handlers and server setup for the chat form.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"azchat/internal/chat"
	"azchat/internal/core"
	"azchat/internal/flash"
	"azchat/internal/observability"
)

const sessionCookie = "azchat_session"

// Validation messages shown in the error panel
const (
	msgNameRequired = "Bitte gib deinen Namen ein."
	msgEmailInvalid = "Die E-Mail-Adresse ist ungültig."
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Chatter sends one prompt and returns the reply text
type Chatter interface {
	Send(ctx context.Context, prompt string, opts ...chat.Option) (string, error)
}

// Handler holds the HTTP handlers
type Handler struct {
	chat  Chatter
	flash flash.Store
}

// NewHandler creates a new handler. A nil store disables the previous-result panel.
func NewHandler(c Chatter, store flash.Store) *Handler {
	return &Handler{
		chat:  c,
		flash: store,
	}
}

// page is the view model for templates/index.html
type page struct {
	flash.Result
	HasResponse bool
	Previous    bool
}

// Index handles GET /
func (h *Handler) Index(c echo.Context) error {
	p := page{}

	if h.flash != nil {
		if cookie, err := c.Cookie(sessionCookie); err == nil && cookie.Value != "" {
			prev, err := h.flash.Take(c.Request().Context(), cookie.Value)
			if err != nil {
				core.Logger(c.Request().Context()).Warn("failed to read previous result", "error", err)
			} else if prev != nil {
				p.Result = *prev
				p.HasResponse = prev.Error == ""
				p.Previous = true
			}
		}
	}

	return render(c, p)
}

// Submit handles POST /submit. Every outcome renders the form page with status 200.
func (h *Handler) Submit(c echo.Context) error {
	ctx := c.Request().Context()
	result := flash.Result{
		Name:    strings.TrimSpace(c.FormValue("name")),
		Email:   strings.TrimSpace(c.FormValue("email")),
		Message: c.FormValue("message"),
	}

	outcome := observability.OutcomeSuccess
	switch {
	case result.Name == "":
		result.Error = msgNameRequired
		outcome = observability.OutcomeInvalid
	case result.Email != "" && !validEmail(result.Email):
		result.Error = msgEmailInvalid
		outcome = observability.OutcomeInvalid
	default:
		text, err := h.chat.Send(ctx, result.Message)
		if err != nil {
			result.Error = errorMessage(err)
			outcome = observability.OutcomeError
		} else {
			result.Response = text
		}
	}
	observability.RecordSubmission(outcome)

	h.remember(c, &result)

	return render(c, page{Result: result, HasResponse: result.Error == ""})
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// remember stores result for the next GET / of this browser session.
func (h *Handler) remember(c echo.Context, result *flash.Result) {
	if h.flash == nil {
		return
	}

	id := ""
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		if _, perr := uuid.Parse(cookie.Value); perr == nil {
			id = cookie.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
		c.SetCookie(&http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	if err := h.flash.Set(c.Request().Context(), id, result); err != nil {
		core.Logger(c.Request().Context()).Warn("failed to store result", "error", err)
	}
}

// errorMessage is the text shown in the error panel
func errorMessage(err error) string {
	var cerr *core.Error
	if errors.As(err, &cerr) {
		return cerr.Message
	}
	return err.Error()
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func render(c echo.Context, p page) error {
	var buf strings.Builder
	if err := indexTemplate.Execute(&buf, p); err != nil {
		return err
	}
	return c.HTML(http.StatusOK, buf.String())
}
