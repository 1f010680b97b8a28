package ggconfigd

import (
	"path/filepath"
	"testing"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggobject"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "config.bolt"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	s := openTestStore(t)
	arena := ggobject.NewArena(4096, 256, 64)

	path := []string{"services", "main", "status"}
	if err := s.Write(path, ggobject.BufString("RUNNING"), 42); err != nil {
		t.Fatalf("Write: %v", err)
	}

	v, ts, err := s.ReadWithTimestamp(path, arena)
	if err != nil {
		t.Fatalf("ReadWithTimestamp: %v", err)
	}
	if string(v.AsBuf()) != "RUNNING" {
		t.Fatalf("got %q, want RUNNING", v.AsBuf())
	}
	if ts != 42 {
		t.Fatalf("got timestamp %d, want 42", ts)
	}
}

func TestReadMissingKeyIsNoEntry(t *testing.T) {
	s := openTestStore(t)
	arena := ggobject.NewArena(4096, 256, 64)

	_, err := s.Read([]string{"nope"}, arena)
	if ggerr.KindOf(err) != ggerr.NoEntry {
		t.Fatalf("expected NoEntry, got %v", err)
	}
}

func TestWriteRejectsOverDepthKeyPath(t *testing.T) {
	s := openTestStore(t)
	path := make([]string, MaxKeyDepth+1)
	for i := range path {
		path[i] = "x"
	}
	err := s.Write(path, ggobject.Null(), 0)
	if ggerr.KindOf(err) != ggerr.Range {
		t.Fatalf("expected Range, got %v", err)
	}
}

func TestIsUnderPath(t *testing.T) {
	key, err := joinKeyPath([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("joinKeyPath: %v", err)
	}
	if !IsUnderPath(key, []string{"a", "b"}) {
		t.Fatal("expected a/b/c to be under a/b")
	}
	if !IsUnderPath(key, []string{"a", "b", "c"}) {
		t.Fatal("expected exact match to be under itself")
	}
	if IsUnderPath(key, []string{"a", "x"}) {
		t.Fatal("expected a/b/c not to be under a/x")
	}
}

func TestImportYAMLDoesNotOverwriteExisting(t *testing.T) {
	s := openTestStore(t)
	arena := ggobject.NewArena(4096, 256, 64)

	if err := s.Write([]string{"nucleus", "version"}, ggobject.BufString("live"), 1); err != nil {
		t.Fatalf("Write: %v", err)
	}

	doc := map[string]any{
		"nucleus": map[string]any{
			"version": "from-yaml",
			"region":  "us-east-1",
		},
	}
	if err := s.ImportYAML(doc); err != nil {
		t.Fatalf("ImportYAML: %v", err)
	}

	v, err := s.Read([]string{"nucleus", "version"}, arena)
	if err != nil {
		t.Fatalf("Read version: %v", err)
	}
	if string(v.AsBuf()) != "live" {
		t.Fatalf("existing value overwritten: got %q", v.AsBuf())
	}

	v, err = s.Read([]string{"nucleus", "region"}, arena)
	if err != nil {
		t.Fatalf("Read region: %v", err)
	}
	if string(v.AsBuf()) != "us-east-1" {
		t.Fatalf("got %q, want us-east-1", v.AsBuf())
	}
}
