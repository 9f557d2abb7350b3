package folio

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/content"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// postPage is the server-rendered page for one published blog post.
func postPage(cfg SiteConfig, p *BlogPost) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		date := ""
		if p.PublishDate != nil {
			date = p.PublishDate.Format("2006-01-02")
		}
		_, err := fmt.Fprintf(w, `<!doctype html><html lang="en"><head><meta charset="utf-8"><title>%s | %s</title>`+
			`<link rel="canonical" href="%s"><script type="application/ld+json">%s</script>`+
			`</head><body><article><h1>%s</h1>`+
			`<p class="meta"><time datetime="%s">%s</time> · %s</p>`,
			templ.EscapeString(p.Title), templ.EscapeString(cfg.Name),
			templ.EscapeString(BuildURL(cfg.URL, "blog", p.Slug)), BlogPostingJsonLD(p, cfg),
			templ.EscapeString(p.Title), date, date, templ.EscapeString(p.ReadTime))
		if err != nil {
			return err
		}
		if err := content.HTML(p.Body).Render(ctx, w); err != nil {
			return err
		}
		_, err = io.WriteString(w, `</article></body></html>`)
		return err
	})
}

func errorPage(code int, msg string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<!doctype html><html lang="en"><head><meta charset="utf-8"><title>%d</title></head>`+
			`<body><h1>%d</h1><p>%s</p></body></html>`, code, code, templ.EscapeString(msg))
		return err
	})
}
