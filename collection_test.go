package folio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eringen/folio/content"
)

func fixedNow() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func TestCollectionCreateDerivesFields(t *testing.T) {
	blogs := NewCollection[BlogPost](setupTestStore(t))
	blogs.SetClock(fixedNow)
	ctx := context.Background()

	p, err := blogs.Create(ctx, []byte(`{
		"title": "Hello & World",
		"status": "published",
		"tags": ["Go", " go ", "Web"],
		"content": {"blocks": [{"type": "paragraph", "data": {"text": "one two three"}}]}
	}`))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.ID == "" {
		t.Error("ID should be assigned")
	}
	if p.Slug != "hello-and-world" {
		t.Errorf("Slug = %q, want hello-and-world", p.Slug)
	}
	if p.PublishDate == nil || !p.PublishDate.Equal(fixedNow()) {
		t.Errorf("PublishDate = %v, want %v", p.PublishDate, fixedNow())
	}
	if p.ReadTime != "1 min read" {
		t.Errorf("ReadTime = %q, want 1 min read", p.ReadTime)
	}
	if len(p.Tags) != 2 || p.Tags[0] != "go" || p.Tags[1] != "web" {
		t.Errorf("Tags = %v, want [go web]", p.Tags)
	}

	got, err := blogs.GetBySlug(ctx, "hello-and-world")
	if err != nil {
		t.Fatalf("GetBySlug failed: %v", err)
	}
	if got.ID != p.ID || got.Body.Doc == nil {
		t.Errorf("GetBySlug = %+v", got)
	}
}

func TestCollectionCreateSuffixesTakenSlug(t *testing.T) {
	blogs := NewCollection[BlogPost](setupTestStore(t))
	ctx := context.Background()

	want := []string{"foo", "foo-1", "foo-2"}
	for _, w := range want {
		p, err := blogs.Create(ctx, []byte(`{"title": "Foo"}`))
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if p.Slug != w {
			t.Errorf("Slug = %q, want %q", p.Slug, w)
		}
	}
}

func TestCollectionUpdatePartial(t *testing.T) {
	projects := NewCollection[Project](setupTestStore(t))
	ctx := context.Background()

	p, err := projects.Create(ctx, []byte(`{"title": "Site", "repoUrl": "https://github.com/x/site", "techStack": ["go"]}`))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.Status != content.Draft || p.PublishDate != nil {
		t.Fatalf("new project should be an undated draft: %+v", p.Record)
	}

	upd, err := projects.Update(ctx, p.ID, []byte(`{"title": "Renamed", "status": "published", "featured": true}`))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if upd.Slug != "site" {
		t.Errorf("Slug = %q, a title edit must keep the slug", upd.Slug)
	}
	if upd.RepoURL != "https://github.com/x/site" || len(upd.TechStack) != 1 || !upd.Featured {
		t.Errorf("untouched fields lost or patch not applied: %+v", upd)
	}
	if upd.PublishDate == nil {
		t.Error("publishing should stamp PublishDate")
	}
	if !upd.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("CreatedAt changed from %v to %v", p.CreatedAt, upd.CreatedAt)
	}

	cleared, err := projects.Update(ctx, p.ID, []byte(`{"slug": ""}`))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if cleared.Slug != "renamed" {
		t.Errorf("Slug = %q, a cleared slug is regenerated from the title", cleared.Slug)
	}
}

func TestCollectionUpdateOwnSlugIsNotAConflict(t *testing.T) {
	blogs := NewCollection[BlogPost](setupTestStore(t))
	ctx := context.Background()
	p, _ := blogs.Create(ctx, []byte(`{"title": "Mine"}`))

	upd, err := blogs.Update(ctx, p.ID, []byte(`{"slug": "mine", "excerpt": "same slug resent"}`))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if upd.Slug != "mine" {
		t.Errorf("Slug = %q, want mine", upd.Slug)
	}
}

func TestCollectionExplicitSlugTaken(t *testing.T) {
	blogs := NewCollection[BlogPost](setupTestStore(t))
	ctx := context.Background()
	blogs.Create(ctx, []byte(`{"title": "First", "slug": "custom"}`))

	_, err := blogs.Create(ctx, []byte(`{"title": "Second", "slug": "custom"}`))
	if !errors.Is(err, content.ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

// A probe that always reports free simulates losing the race to a concurrent
// writer: the unique index rejects the first write.
func TestCollectionRetriesDerivedSlugConflict(t *testing.T) {
	blogs := NewCollection[BlogPost](setupTestStore(t))
	ctx := context.Background()
	if _, err := blogs.Create(ctx, []byte(`{"title": "Race"}`)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	real := blogs.probe
	calls := 0
	blogs.probe = func(excludeID string) content.ExistsFunc {
		calls++
		if calls == 1 {
			return func(context.Context, string) (bool, error) { return false, nil }
		}
		return real(excludeID)
	}

	p, err := blogs.Create(ctx, []byte(`{"title": "Race"}`))
	if err != nil {
		t.Fatalf("Create after conflict failed: %v", err)
	}
	if p.Slug != "race-1" {
		t.Errorf("Slug = %q, want race-1", p.Slug)
	}
	if calls != 2 {
		t.Errorf("probe built %d times, want 2", calls)
	}
}

func TestCollectionGivesUpAfterSecondConflict(t *testing.T) {
	blogs := NewCollection[BlogPost](setupTestStore(t))
	ctx := context.Background()
	blogs.Create(ctx, []byte(`{"title": "Race"}`))

	blogs.probe = func(string) content.ExistsFunc {
		return func(context.Context, string) (bool, error) { return false, nil }
	}
	if _, err := blogs.Create(ctx, []byte(`{"title": "Race"}`)); !errors.Is(err, content.ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

func TestCollectionValidation(t *testing.T) {
	products := NewCollection[Product](setupTestStore(t))
	ctx := context.Background()

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing title", `{"price": 100}`, "title"},
		{"negative price", `{"title": "Mug", "price": -1}`, "price"},
		{"bad currency", `{"title": "Mug", "price": 100, "currency": "dollars"}`, "currency"},
		{"bad status", `{"title": "Mug", "status": "live"}`, "status"},
		{"malformed json", `{"title": `, "body"},
		{"wrong type", `{"title": "Mug", "price": "cheap"}`, "body"},
	}
	for _, tt := range tests {
		_, err := products.Create(ctx, []byte(tt.body))
		var ve *content.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: expected ValidationError, got %v", tt.name, err)
			continue
		}
		if ve.Field != tt.field {
			t.Errorf("%s: Field = %q, want %q", tt.name, ve.Field, tt.field)
		}
	}

	p, err := products.Create(ctx, []byte(`{"title": "Mug", "price": 1500}`))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.Currency != "usd" {
		t.Errorf("Currency = %q, want usd default", p.Currency)
	}
}

func TestCollectionListAndDelete(t *testing.T) {
	blogs := NewCollection[BlogPost](setupTestStore(t))
	ctx := context.Background()
	changes := 0
	blogs.OnChange = func(Kind) { changes++ }

	for _, body := range []string{
		`{"title": "One", "status": "published", "tags": ["go"]}`,
		`{"title": "Two", "status": "published"}`,
		`{"title": "Three"}`,
	} {
		if _, err := blogs.Create(ctx, []byte(body)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	page, err := blogs.List(ctx, ListQuery{Status: content.Published, Page: 1, Limit: 1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.Total != 2 || page.Pages != 2 || len(page.Items) != 1 {
		t.Errorf("page = %+v", page)
	}

	published, err := blogs.Published(ctx)
	if err != nil || len(published) != 2 {
		t.Fatalf("Published = %d items, %v", len(published), err)
	}

	gone, err := blogs.Delete(ctx, published[0].ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if gone.ID != published[0].ID {
		t.Errorf("Delete returned %q, want %q", gone.ID, published[0].ID)
	}
	if _, err := blogs.Get(ctx, gone.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: expected ErrNotFound, got %v", err)
	}
	if changes != 4 {
		t.Errorf("OnChange called %d times, want 4", changes)
	}
}

func TestCollectionUpdateMissing(t *testing.T) {
	blogs := NewCollection[BlogPost](setupTestStore(t))
	if _, err := blogs.Update(context.Background(), "nope", []byte(`{"title": "x"}`)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
