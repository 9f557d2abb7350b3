package folio

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/content"
)

const maxBodySize = 1 << 20

// registerCollection mounts the public and admin JSON endpoints for col.
func registerCollection[T any, P interface {
	*T
	Entity
}](a *App, public, admin *echo.Group, col *Collection[T, P]) {
	base := "/" + string(col.Kind())

	public.GET(base, func(c echo.Context) error {
		q := a.listQuery(c)
		q.Status = content.Published
		key := fmt.Sprintf("%s:list:%d:%d:%s:%s", col.Kind(), q.Page, q.Limit, q.Tag, q.Category)
		page, err := cached(a.Cache, key, func() (Page[T], error) {
			return col.List(c.Request().Context(), q)
		})
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, page)
	})

	public.GET(base+"/tags", func(c echo.Context) error {
		tags, err := cached(a.Cache, string(col.Kind())+":tags", func() ([]string, error) {
			return col.Tags(c.Request().Context())
		})
		if err != nil {
			return err
		}
		if tags == nil {
			tags = []string{}
		}
		return c.JSON(http.StatusOK, tags)
	})

	public.GET(base+"/:slug", func(c echo.Context) error {
		v, err := col.GetBySlug(c.Request().Context(), c.Param("slug"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, v)
	})

	admin.GET(base, func(c echo.Context) error {
		q := a.listQuery(c)
		if raw := c.QueryParam("status"); raw != "" {
			st, err := content.ParseStatus(raw)
			if err != nil {
				return err
			}
			q.Status = st
		}
		page, err := col.List(c.Request().Context(), q)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, page)
	})

	admin.GET(base+"/:id", func(c echo.Context) error {
		v, err := col.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, v)
	})

	admin.POST(base, func(c echo.Context) error {
		raw, err := readBody(c)
		if err != nil {
			return err
		}
		v, err := col.Create(c.Request().Context(), raw)
		if err != nil {
			return err
		}
		a.Log.WithField("kind", col.Kind()).WithField("slug", v.Meta().Slug).Info("record created")
		return c.JSON(http.StatusCreated, v)
	})

	admin.PATCH(base+"/:id", func(c echo.Context) error {
		raw, err := readBody(c)
		if err != nil {
			return err
		}
		v, err := col.Update(c.Request().Context(), c.Param("id"), raw)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, v)
	})

	admin.DELETE(base+"/:id", func(c echo.Context) error {
		ctx := c.Request().Context()
		v, err := col.Delete(ctx, c.Param("id"))
		if err != nil {
			return err
		}
		a.releaseAssets(ctx, v.AssetRefs())
		a.Log.WithField("kind", col.Kind()).WithField("slug", v.Meta().Slug).Info("record deleted")
		return c.JSON(http.StatusOK, v)
	})
}

// listQuery reads page, limit, tag and category. Malformed numbers fall back
// to the defaults; limit is capped at MaxPageSize.
func (a *App) listQuery(c echo.Context) ListQuery {
	q := ListQuery{
		Page:     1,
		Limit:    a.Config.PageSize,
		Tag:      strings.TrimSpace(c.QueryParam("tag")),
		Category: strings.TrimSpace(c.QueryParam("category")),
	}
	if n, err := strconv.Atoi(c.QueryParam("page")); err == nil && n > 0 {
		q.Page = n
	}
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 {
		q.Limit = n
	}
	if q.Limit > a.Config.MaxPageSize {
		q.Limit = a.Config.MaxPageSize
	}
	return q
}

func readBody(c echo.Context) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize+1))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	if len(raw) > maxBodySize {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "body too large")
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, &content.ValidationError{Field: "body", Reason: "empty"}
	}
	return raw, nil
}

func (a *App) handlePost(c echo.Context) error {
	post, err := a.Blogs.GetBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return Render(c, postPage(a.Config, post))
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := cached(a.Cache, "feed", func() ([]BlogPost, error) {
		return a.Blogs.Published(c.Request().Context())
	})
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) handleSitemap(c echo.Context) error {
	entries, err := cached(a.Cache, "sitemap", func() ([]sitemapEntry, error) {
		return a.sitemapEntries(c.Request().Context())
	})
	if err != nil {
		return err
	}
	return a.renderSitemap(c, entries)
}
