package folio

import (
	"net/url"
	"strings"

	"github.com/eringen/folio/content"
)

// Kind names a content collection. It doubles as the URL segment.
type Kind string

const (
	KindBlog    Kind = "blogs"
	KindProduct Kind = "products"
	KindProject Kind = "projects"
)

// Entity is a publishable record stored in one collection.
type Entity interface {
	content.Publishable
	Kind() Kind
	Validate() error
	// AssetRefs lists uploaded files the entity points at, released on delete.
	AssetRefs() []string
}

// Deriver is implemented by entities with computed fields, refreshed on
// every save.
type Deriver interface {
	Derive()
}

// BlogPost is a blog article. Content is plain text or an EditorJS document.
type BlogPost struct {
	content.Record
	Author   string       `json:"author,omitempty"`
	Body     content.Body `json:"content"`
	ReadTime string       `json:"readTime,omitempty"`
}

func (BlogPost) Kind() Kind { return KindBlog }

func (p *BlogPost) Derive() { p.ReadTime = content.ReadTime(p.Body) }

func (p *BlogPost) Validate() error {
	if p.Title == "" {
		return &content.ValidationError{Field: "title", Reason: "required"}
	}
	return nil
}

func (p *BlogPost) AssetRefs() []string { return FilterEmpty([]string{p.Thumbnail}) }

// Product is a storefront item. Price is in the currency's minor unit.
type Product struct {
	content.Record
	Price    int64    `json:"price"`
	Currency string   `json:"currency"`
	Stock    int      `json:"stock"`
	Images   []string `json:"images,omitempty"`
}

func (Product) Kind() Kind { return KindProduct }

func (p *Product) Derive() {
	p.Currency = strings.ToLower(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = "usd"
	}
}

func (p *Product) Validate() error {
	switch {
	case p.Title == "":
		return &content.ValidationError{Field: "title", Reason: "required"}
	case p.Price < 0:
		return &content.ValidationError{Field: "price", Reason: "must not be negative"}
	case p.Stock < 0:
		return &content.ValidationError{Field: "stock", Reason: "must not be negative"}
	case len(p.Currency) != 3:
		return &content.ValidationError{Field: "currency", Reason: "must be a 3-letter ISO code"}
	}
	return nil
}

func (p *Product) AssetRefs() []string {
	return FilterEmpty(append([]string{p.Thumbnail}, p.Images...))
}

// Project is a portfolio entry.
type Project struct {
	content.Record
	RepoURL   string   `json:"repoUrl,omitempty"`
	DemoURL   string   `json:"demoUrl,omitempty"`
	TechStack []string `json:"techStack,omitempty"`
	Featured  bool     `json:"featured"`
}

func (Project) Kind() Kind { return KindProject }

func (p *Project) Validate() error {
	if p.Title == "" {
		return &content.ValidationError{Field: "title", Reason: "required"}
	}
	for field, raw := range map[string]string{"repoUrl": p.RepoURL, "demoUrl": p.DemoURL} {
		if raw != "" && !validHTTPURL(raw) {
			return &content.ValidationError{Field: field, Reason: "must be an http(s) URL"}
		}
	}
	return nil
}

func (p *Project) AssetRefs() []string { return FilterEmpty([]string{p.Thumbnail}) }

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && strings.TrimSpace(u.Host) != ""
}
