// Package content holds the publishing core shared by blog posts, products
// and projects: slug allocation, the draft/published/archived lifecycle and
// EditorJS body handling.
package content

import (
	"fmt"
	"strings"
	"time"
)

// Status is the publishing state of a record.
type Status string

const (
	Draft     Status = "draft"
	Published Status = "published"
	Archived  Status = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case Draft, Published, Archived:
		return true
	}
	return false
}

// ParseStatus normalizes s and returns the matching Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
	}
	return st, nil
}

// Record is the shape every publishable entity embeds.
type Record struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Status      Status     `json:"status"`
	PublishDate *time.Time `json:"publishDate,omitempty"`
	Category    string     `json:"category,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Excerpt     string     `json:"excerpt,omitempty"`
	Thumbnail   string     `json:"thumbnail,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Publishable is implemented by any entity that embeds a Record.
type Publishable interface {
	Meta() *Record
}

// Meta returns r itself so embedding types satisfy Publishable.
func (r *Record) Meta() *Record { return r }

// Patch is a partial update. A nil field is absent; a non-nil field pointing
// at a zero value is an explicit clear.
type Patch struct {
	Title       *string    `json:"title"`
	Slug        *string    `json:"slug"`
	Status      *Status    `json:"status"`
	PublishDate *time.Time `json:"publishDate"`
	Category    *string    `json:"category"`
	Tags        *[]string  `json:"tags"`
	Excerpt     *string    `json:"excerpt"`
	Thumbnail   *string    `json:"thumbnail"`
}

// PatchFrom returns a patch that sets every field of r.
func PatchFrom(r Record) Patch {
	tags := append([]string(nil), r.Tags...)
	p := Patch{
		Title:     &r.Title,
		Slug:      &r.Slug,
		Status:    &r.Status,
		Category:  &r.Category,
		Tags:      &tags,
		Excerpt:   &r.Excerpt,
		Thumbnail: &r.Thumbnail,
	}
	if r.PublishDate != nil {
		t := *r.PublishDate
		p.PublishDate = &t
	}
	return p
}

// DerivesSlug reports whether applying p on top of prev allocates a slug from
// the title rather than keeping or taking one verbatim.
func (p Patch) DerivesSlug(prev *Record) bool {
	if p.Slug == nil {
		return prev == nil || prev.Slug == ""
	}
	return strings.TrimSpace(*p.Slug) == ""
}
