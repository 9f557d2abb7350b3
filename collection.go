package folio

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/eringen/folio/content"
)

// Collection is the CRUD service for one kind of entity. T is the entity
// struct and P its pointer type, which carries the Entity methods.
type Collection[T any, P interface {
	*T
	Entity
}] struct {
	store     *Store
	kind      Kind
	lifecycle content.Lifecycle
	newID     func() string
	now       func() time.Time

	// probe builds the slug existence check for a save. It defaults to the
	// store lookup excluding the record being saved.
	probe func(excludeID string) content.ExistsFunc

	// OnChange runs after every successful write.
	OnChange func(kind Kind)
}

// Page is one page of a listing.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// NewCollection creates the service for T backed by s.
func NewCollection[T any, P interface {
	*T
	Entity
}](s *Store) *Collection[T, P] {
	kind := P(new(T)).Kind()
	c := &Collection[T, P]{
		store: s,
		kind:  kind,
		lifecycle: content.Lifecycle{
			Slugs: content.Allocator{Observe: func(n int) {
				slugProbes.WithLabelValues(string(kind)).Observe(float64(n))
			}},
		},
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
	c.probe = func(excludeID string) content.ExistsFunc {
		return func(ctx context.Context, candidate string) (bool, error) {
			return s.SlugExists(ctx, kind, candidate, excludeID)
		}
	}
	return c
}

// Kind returns the collection's kind.
func (c *Collection[T, P]) Kind() Kind { return c.kind }

// SetClock replaces the time source used for timestamps and publish dates.
func (c *Collection[T, P]) SetClock(now func() time.Time) {
	c.now = now
	c.lifecycle.Now = now
}

// Get returns the entity with id regardless of status.
func (c *Collection[T, P]) Get(ctx context.Context, id string) (P, error) {
	data, err := c.store.recordData(ctx, c.kind, id)
	if err != nil {
		return nil, err
	}
	return c.decode(data)
}

// GetBySlug returns the published entity with slug.
func (c *Collection[T, P]) GetBySlug(ctx context.Context, slug string) (P, error) {
	data, err := c.store.recordDataBySlug(ctx, c.kind, slug, content.Published)
	if err != nil {
		return nil, err
	}
	return c.decode(data)
}

// List returns one page of entities matching q.
func (c *Collection[T, P]) List(ctx context.Context, q ListQuery) (Page[T], error) {
	rows, total, err := c.store.listRecordData(ctx, c.kind, q)
	if err != nil {
		return Page[T]{}, err
	}
	items := make([]T, 0, len(rows))
	for _, data := range rows {
		v, err := c.decode(data)
		if err != nil {
			return Page[T]{}, err
		}
		items = append(items, *v)
	}
	page := Page[T]{Items: items, Total: total, Page: q.Page, Limit: q.Limit, Pages: 1}
	if page.Page < 1 {
		page.Page = 1
	}
	if q.Limit > 0 {
		page.Pages = (total + q.Limit - 1) / q.Limit
	}
	return page, nil
}

// Published returns every published entity, newest first.
func (c *Collection[T, P]) Published(ctx context.Context) ([]T, error) {
	page, err := c.List(ctx, ListQuery{Status: content.Published})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Tags returns the tags used by published entities.
func (c *Collection[T, P]) Tags(ctx context.Context) ([]string, error) {
	return c.store.ListTags(ctx, c.kind)
}

// Create stores a new entity from a JSON body.
func (c *Collection[T, P]) Create(ctx context.Context, raw []byte) (P, error) {
	return c.save(ctx, nil, raw)
}

// Update applies a partial JSON body to the entity with id.
func (c *Collection[T, P]) Update(ctx context.Context, id string, raw []byte) (P, error) {
	prev, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.save(ctx, prev, raw)
}

// Delete removes the entity with id and returns it.
func (c *Collection[T, P]) Delete(ctx context.Context, id string) (P, error) {
	data, err := c.store.deleteRecord(ctx, c.kind, id)
	if err != nil {
		return nil, err
	}
	c.changed()
	return c.decode(data)
}

func (c *Collection[T, P]) save(ctx context.Context, prev P, raw []byte) (P, error) {
	var patch content.Patch
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, bodyError(err)
	}

	var prevRec *content.Record
	if prev != nil {
		prevRec = prev.Meta()
	}
	derived := patch.DerivesSlug(prevRec)

	// A derived slug can lose the race to a concurrent insert between probe
	// and write. Probe again once; the second loss is reported.
	for attempt := 0; ; attempt++ {
		next, err := c.build(ctx, prev, prevRec, patch, raw)
		if err != nil {
			return nil, err
		}
		err = c.persist(ctx, next, prev == nil)
		if err == nil {
			c.changed()
			return next, nil
		}
		if errors.Is(err, content.ErrSlugTaken) {
			slugConflicts.WithLabelValues(string(c.kind)).Inc()
			if derived && attempt == 0 {
				continue
			}
		}
		return nil, err
	}
}

// build overlays raw onto a copy of prev and resolves the lifecycle fields.
func (c *Collection[T, P]) build(ctx context.Context, prev P, prevRec *content.Record, patch content.Patch, raw []byte) (P, error) {
	next := P(new(T))
	if prev != nil {
		data, err := json.Marshal(prev)
		if err != nil {
			return nil, errors.Wrap(err, "copy entity")
		}
		if err := json.Unmarshal(data, next); err != nil {
			return nil, errors.Wrap(err, "copy entity")
		}
	}
	if err := json.Unmarshal(raw, next); err != nil {
		return nil, bodyError(err)
	}

	id := ""
	if prevRec != nil {
		id = prevRec.ID
	}
	rec, err := c.lifecycle.Apply(ctx, prevRec, patch, c.probe(id))
	if err != nil {
		return nil, err
	}

	now := c.now()
	rec.Tags = normalizeTags(rec.Tags)
	if prevRec == nil {
		rec.ID = c.newID()
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	*next.Meta() = rec

	if d, ok := any(next).(Deriver); ok {
		d.Derive()
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}

func (c *Collection[T, P]) persist(ctx context.Context, v P, create bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode entity")
	}
	row := storedRecord{Record: *v.Meta(), Data: data}
	if create {
		return c.store.insertRecord(ctx, c.kind, row)
	}
	return c.store.updateRecord(ctx, c.kind, row)
}

func (c *Collection[T, P]) decode(data []byte) (P, error) {
	v := P(new(T))
	if err := json.Unmarshal(data, v); err != nil {
		return nil, content.Unavailable("decode "+string(c.kind), err)
	}
	return v, nil
}

func (c *Collection[T, P]) changed() {
	if c.OnChange != nil {
		c.OnChange(c.kind)
	}
}

func bodyError(err error) error {
	if content.IsValidation(err) {
		return err
	}
	return &content.ValidationError{Field: "body", Reason: err.Error()}
}
