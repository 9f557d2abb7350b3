package content

import (
	"context"
	"encoding/binary"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sqids/sqids-go"
)

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reNonWord    = regexp.MustCompile(`[^\w-]+`)
	reHyphens    = regexp.MustCompile(`-{2,}`)
)

// Normalize turns a title into a base slug: lowercase, hyphen delimited,
// "&" replaced by "and", and nothing outside [a-z0-9_-].
func Normalize(title string) string {
	s := strings.TrimSpace(strings.ToLower(title))
	s = reWhitespace.ReplaceAllString(s, "-")
	s = strings.ReplaceAll(s, "&", "and")
	s = reNonWord.ReplaceAllString(s, "")
	s = reHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ExistsFunc reports whether candidate is already used in the collection the
// caller scoped it to.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// Allocator derives unique slugs by probing base, base-1, base-2, ...
//
// Uniqueness holds only at the instant of each probe. Two concurrent calls can
// return the same candidate; the store's unique index decides the winner.
type Allocator struct {
	// Seed supplies a base when the title normalizes to nothing.
	// Defaults to NewSeed.
	Seed func() string
	// Observe, if set, receives the number of probes a successful
	// allocation took.
	Observe func(probes int)
}

// DefaultAllocator is used by Allocate.
var DefaultAllocator = Allocator{}

// Allocate derives a unique slug for title with DefaultAllocator.
func Allocate(ctx context.Context, title string, exists ExistsFunc) (string, error) {
	return DefaultAllocator.Allocate(ctx, title, exists)
}

// Allocate returns the first candidate for which exists reports false.
// Errors from exists are returned unchanged. A nil exists treats every
// candidate as free.
func (a Allocator) Allocate(ctx context.Context, title string, exists ExistsFunc) (string, error) {
	base := Normalize(title)
	if base == "" {
		seed := a.Seed
		if seed == nil {
			seed = NewSeed
		}
		base = Normalize(seed())
		if base == "" {
			return "", &ValidationError{Field: "slug", Reason: "title has no usable characters"}
		}
	}
	if exists == nil {
		return base, nil
	}

	candidate := base
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			if a.Observe != nil {
				a.Observe(n)
			}
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(n)
	}
}

var seeds struct {
	once sync.Once
	enc  *sqids.Sqids
}

func seedEncoder() *sqids.Sqids {
	seeds.once.Do(func() {
		enc, err := sqids.New(sqids.Options{
			Alphabet:  "k3g7qae51fcsiwrnoybu6mxzvdlt4j9h2p08",
			MinLength: 6,
		})
		if err != nil {
			panic("content: sqids init failed: " + err.Error())
		}
		seeds.enc = enc
	})
	return seeds.enc
}

// NewSeed returns a short random slug base such as "item-x9k2qa".
func NewSeed() string {
	id := uuid.New()
	token, err := seedEncoder().Encode([]uint64{binary.BigEndian.Uint64(id[:8]) >> 16})
	if err != nil || token == "" {
		token = strings.ReplaceAll(id.String(), "-", "")[:10]
	}
	return "item-" + token
}
