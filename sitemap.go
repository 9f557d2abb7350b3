package folio

import (
	"context"
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folio/content"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type sitemapEntry struct {
	Kind   Kind
	Record content.Record
}

// pagePath is the public page segment for a kind.
func pagePath(k Kind) string {
	if k == KindBlog {
		return "blog"
	}
	return string(k)
}

func (a *App) sitemapEntries(ctx context.Context) ([]sitemapEntry, error) {
	var entries []sitemapEntry
	posts, err := a.Blogs.Published(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		entries = append(entries, sitemapEntry{Kind: KindBlog, Record: p.Record})
	}
	products, err := a.Products.Published(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		entries = append(entries, sitemapEntry{Kind: KindProduct, Record: p.Record})
	}
	projects, err := a.Projects.Published(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		entries = append(entries, sitemapEntry{Kind: KindProject, Record: p.Record})
	}
	return entries, nil
}

func buildSitemap(base string, entries []sitemapEntry) sitemapURLSet {
	urls := []sitemapURL{
		{Loc: BuildURL(base)},
	}
	for _, e := range entries {
		urls = append(urls, sitemapURL{
			Loc:     BuildURL(base, pagePath(e.Kind), e.Record.Slug),
			LastMod: e.Record.UpdatedAt.UTC().Format("2006-01-02"),
		})
	}
	return sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
}

func (a *App) renderSitemap(c echo.Context, entries []sitemapEntry) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(buildSitemap(a.Config.URL, entries))
}
