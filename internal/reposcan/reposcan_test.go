package reposcan

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListBinaryExcludesSourceAndDotfiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b-1.x86_64.rpm")
	touch(t, dir, "a-1.x86_64.rpm")
	touch(t, dir, "c-1.src.rpm")
	touch(t, dir, ".hidden.rpm")
	touch(t, dir, "readme.txt")
	if err := os.Mkdir(filepath.Join(dir, "subdir.rpm"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ListBinary(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a-1.x86_64.rpm", "b-1.x86_64.rpm"}
	if len(got) != len(want) {
		t.Fatalf("ListBinary() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ListBinary()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListSourceOnlySrpm(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b-1.src.rpm")
	touch(t, dir, "a-1.src.rpm")
	touch(t, dir, "a-1.x86_64.rpm")

	got, err := ListSource(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a-1.src.rpm", "b-1.src.rpm"}
	if len(got) != len(want) {
		t.Fatalf("ListSource() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ListSource()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListBinaryMissingDir(t *testing.T) {
	if _, err := ListBinary(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
