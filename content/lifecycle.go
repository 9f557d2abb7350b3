package content

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Lifecycle resolves the status-dependent fields of a record on create or
// update, before it is persisted.
type Lifecycle struct {
	// Now defaults to time.Now in UTC.
	Now   func() time.Time
	Slugs Allocator
}

func (l Lifecycle) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now().UTC()
}

// Apply merges in onto prev (nil on create) and returns the resolved record.
// The only I/O is the exists probe, which the caller scopes to the record's
// collection and excludes the record's own ID from.
//
// Rules:
//   - status: in, else prev, else draft.
//   - publishDate: an explicit value wins; otherwise the first transition to
//     published stamps Now. It is never cleared automatically.
//   - slug: a non-empty explicit slug is taken verbatim but still probed and
//     rejected with ErrSlugTaken when used elsewhere. An absent slug on update
//     keeps prev's. Otherwise one is allocated from the title.
func (l Lifecycle) Apply(ctx context.Context, prev *Record, in Patch, exists ExistsFunc) (Record, error) {
	var next Record
	if prev != nil {
		next = *prev
		next.Tags = append([]string(nil), prev.Tags...)
		if prev.PublishDate != nil {
			t := *prev.PublishDate
			next.PublishDate = &t
		}
	}

	if in.Title != nil {
		next.Title = strings.TrimSpace(*in.Title)
	}
	if in.Category != nil {
		next.Category = strings.TrimSpace(*in.Category)
	}
	if in.Tags != nil {
		next.Tags = append([]string(nil), (*in.Tags)...)
	}
	if in.Excerpt != nil {
		next.Excerpt = *in.Excerpt
	}
	if in.Thumbnail != nil {
		next.Thumbnail = strings.TrimSpace(*in.Thumbnail)
	}

	if in.Status != nil {
		if !in.Status.Valid() {
			return Record{}, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *in.Status)}
		}
		next.Status = *in.Status
	} else if next.Status == "" {
		next.Status = Draft
	}

	switch {
	case in.PublishDate != nil:
		t := *in.PublishDate
		next.PublishDate = &t
	case next.Status == Published && next.PublishDate == nil:
		t := l.now()
		next.PublishDate = &t
	}

	switch {
	case in.Slug != nil && strings.TrimSpace(*in.Slug) != "":
		slug := strings.TrimSpace(*in.Slug)
		if prev == nil || slug != prev.Slug {
			if exists != nil {
				taken, err := exists(ctx, slug)
				if err != nil {
					return Record{}, err
				}
				if taken {
					return Record{}, ErrSlugTaken
				}
			}
		}
		next.Slug = slug
	case !in.DerivesSlug(prev):
		// keep prev.Slug
	default:
		if next.Title == "" {
			return Record{}, &ValidationError{Field: "title", Reason: "required when no slug is supplied"}
		}
		slug, err := l.Slugs.Allocate(ctx, next.Title, exists)
		if err != nil {
			return Record{}, err
		}
		next.Slug = slug
	}

	return next, nil
}
