package store

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/matzehuels/trajgroups/pkg/cache"
	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
	"github.com/matzehuels/trajgroups/pkg/groups"
)

func sample() *Artifacts {
	return &Artifacts{
		Layers: []int{0, 4, 5, 9},
		Orders: map[int][]int{0: {0, 1}, 4: {0, 1}, 5: {0, 2, 1}, 9: {0, 2, 1}},
		Groups: []groups.Group{
			{ID: 0, Entities: []int{0}, Start: 0, End: 10},
			{ID: 1, Entities: []int{1}, Start: 0, End: 10},
			{ID: 2, Entities: []int{0, 1}, Start: 5, End: 10},
		},
	}
}

func checkSame(t *testing.T, got, want *Artifacts) {
	t.Helper()
	if !slices.Equal(got.Layers, want.Layers) {
		t.Errorf("Layers = %v, want %v", got.Layers, want.Layers)
	}
	for _, l := range want.Layers {
		if !slices.Equal(got.Orders[l], want.Orders[l]) {
			t.Errorf("Orders[%d] = %v, want %v", l, got.Orders[l], want.Orders[l])
		}
	}
	if len(got.Groups) != len(want.Groups) {
		t.Fatalf("Groups = %v, want %v", got.Groups, want.Groups)
	}
	for i := range want.Groups {
		if got.Groups[i].String() != want.Groups[i].String() {
			t.Errorf("Groups[%d] = %v, want %v", i, got.Groups[i], want.Groups[i])
		}
	}
}

func testStore(t *testing.T, s ResultStore) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Load(ctx, "run"); ok || err != nil {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	if err := s.Save(ctx, "run", sample()); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Load(ctx, "run")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	checkSame(t, got, sample())

	// Saving again replaces the set.
	next := sample()
	next.Orders[5] = []int{1, 2, 0}
	if err := s.Save(ctx, "run", next); err != nil {
		t.Fatal(err)
	}
	got, _, _ = s.Load(ctx, "run")
	checkSame(t, got, next)

	if err := s.Delete(ctx, "run"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Load(ctx, "run"); ok {
		t.Error("deleted result still loads")
	}
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	testStore(t, s)
}

func TestFileStore_PartialSetIsMiss(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())
	if err := s.Save(ctx, "run", sample()); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(s.Dir("run"), GroupsName)); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Load(ctx, "run"); ok || err != nil {
		t.Errorf("partial set: ok=%v err=%v, want plain miss", ok, err)
	}
}

func TestFileStore_CorruptSet(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())
	if err := s.Save(ctx, "run", sample()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir("run"), LayersName), []byte("0\n4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, ok, err := s.Load(ctx, "run")
	if ok || !trajerr.Is(err, trajerr.ErrCodeCacheCorrupt) {
		t.Errorf("mismatched layers: ok=%v err=%v, want CACHE_CORRUPT", ok, err)
	}
	if trajerr.IsFatal(err) {
		t.Error("corrupt results must not be fatal")
	}
}

func TestCacheStore(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	testStore(t, NewCacheStore(c, 0))
}

func TestCacheStore_PartialSetIsMiss(t *testing.T) {
	ctx := context.Background()
	c, _ := cache.NewFileCache(t.TempDir())
	s := NewCacheStore(c, 0)
	if err := s.Save(ctx, "run", sample()); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(ctx, "run/"+OrderingsName); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Load(ctx, "run"); ok || err != nil {
		t.Errorf("partial set: ok=%v err=%v, want plain miss", ok, err)
	}
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("TRAJGROUPS_TEST_MONGO")
	if uri == "" {
		t.Skip("TRAJGROUPS_TEST_MONGO not set")
	}
	s, err := NewMongoStore(context.Background(), uri, "trajgroups_test")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testStore(t, s)
}
