package content

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
)

func alwaysFree(context.Context, string) (bool, error) { return false, nil }

func takenSet(slugs ...string) (ExistsFunc, *[]string) {
	set := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		set[s] = true
	}
	var probed []string
	return func(_ context.Context, c string) (bool, error) {
		probed = append(probed, c)
		return set[c], nil
	}, &probed
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Hello & World", "hello-and-world"},
		{"My   Title!!", "my-title"},
		{"  Leading and trailing  ", "leading-and-trailing"},
		{"R&D", "randd"},
		{"Rock&Roll", "rockandroll"},
		{"rock & roll", "rock-and-roll"},
		{"--Already--hyphenated--", "already-hyphenated"},
		{"Go 1.24 Release", "go-124-release"},
		{"snake_case stays", "snake_case-stays"},
		{"Café au lait", "caf-au-lait"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

var slugShape = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func TestAllocateShape(t *testing.T) {
	titles := []string{
		"Hello World",
		"A & B & C",
		"  spaced   out  title ",
		"Product 42",
		"UPPER lower 123",
		"x",
		"& leading ampersand",
		"trailing ampersand &",
	}
	for _, title := range titles {
		got, err := Allocate(context.Background(), title, alwaysFree)
		if err != nil {
			t.Fatalf("Allocate(%q) failed: %v", title, err)
		}
		if !slugShape.MatchString(got) {
			t.Errorf("Allocate(%q) = %q, not a lowercase hyphen-delimited slug", title, got)
		}
	}
}

func TestAllocateExamples(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello & World", "hello-and-world"},
		{"My   Title!!", "my-title"},
	}
	for _, tt := range tests {
		got, err := Allocate(context.Background(), tt.title, alwaysFree)
		if err != nil {
			t.Fatalf("Allocate(%q) failed: %v", tt.title, err)
		}
		if got != tt.want {
			t.Errorf("Allocate(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestAllocateProbesSuffixes(t *testing.T) {
	exists, probed := takenSet("foo")
	got, err := Allocate(context.Background(), "Foo", exists)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if got != "foo-1" {
		t.Errorf("Allocate = %q, want foo-1", got)
	}

	exists, probed = takenSet("foo", "foo-1")
	got, err = Allocate(context.Background(), "Foo", exists)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if got != "foo-2" {
		t.Errorf("Allocate = %q, want foo-2", got)
	}
	want := []string{"foo", "foo-1", "foo-2"}
	if strings.Join(*probed, ",") != strings.Join(want, ",") {
		t.Errorf("probe order = %v, want %v", *probed, want)
	}
}

func TestAllocatePropagatesProbeError(t *testing.T) {
	boom := Unavailable("slug exists", errors.New("disk I/O error"))
	_, err := Allocate(context.Background(), "Foo", func(context.Context, string) (bool, error) {
		return false, boom
	})
	if err != boom {
		t.Fatalf("expected probe error unchanged, got %v", err)
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected errors.Is(err, ErrStoreUnavailable)")
	}
}

func TestAllocateStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Allocate(ctx, "Foo", func(context.Context, string) (bool, error) {
		calls++
		if calls == 3 {
			cancel()
		}
		return true, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 3 {
		t.Errorf("probe calls = %d, want 3", calls)
	}
}

func TestAllocateEmptyBaseUsesSeed(t *testing.T) {
	a := Allocator{Seed: func() string { return "Fallback Seed" }}
	got, err := a.Allocate(context.Background(), "🚀🚀", alwaysFree)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if got != "fallback-seed" {
		t.Errorf("Allocate = %q, want fallback-seed", got)
	}

	got, err = Allocate(context.Background(), "!!!", alwaysFree)
	if err != nil {
		t.Fatalf("Allocate with default seed failed: %v", err)
	}
	if !strings.HasPrefix(got, "item-") || !slugShape.MatchString(got) {
		t.Errorf("default seed slug = %q, want item-<token>", got)
	}
}

func TestAllocateUnusableSeed(t *testing.T) {
	a := Allocator{Seed: func() string { return "" }}
	_, err := a.Allocate(context.Background(), "???", alwaysFree)
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestAllocateObserve(t *testing.T) {
	var probes int
	a := Allocator{Observe: func(n int) { probes = n }}
	exists, _ := takenSet("foo", "foo-1")
	if _, err := a.Allocate(context.Background(), "foo", exists); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if probes != 3 {
		t.Errorf("observed probes = %d, want 3", probes)
	}
}

func TestNewSeedIsSlugSafe(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s := NewSeed()
		if Normalize(s) != s {
			t.Fatalf("NewSeed() = %q changes under Normalize", s)
		}
		seen[s] = true
	}
	if len(seen) < 45 {
		t.Errorf("NewSeed produced only %d distinct values out of 50", len(seen))
	}
}
