package digestcache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSplitKeyGeneric(t *testing.T) {
	key, ns, source, err := SplitKey("foo-1.0-1.x86_64.rpm")
	if err != nil {
		t.Fatal(err)
	}
	if key != "foo-1.0-1" || ns != "x86_64" || source {
		t.Fatalf("got (%q, %q, %v), want (foo-1.0-1, x86_64, false)", key, ns, source)
	}
}

func TestSplitKeySource(t *testing.T) {
	key, ns, source, err := SplitKey("foo-1.0-1.src.rpm")
	if err != nil {
		t.Fatal(err)
	}
	if key != "foo-1.0-1" || ns != "" || !source {
		t.Fatalf("got (%q, %q, %v), want (foo-1.0-1, \"\", true)", key, ns, source)
	}
}

func TestSplitKeyNoarch(t *testing.T) {
	key, ns, _, err := SplitKey("foo-1.0-1.noarch.rpm")
	if err != nil {
		t.Fatal(err)
	}
	if key != "foo-1.0-1" || ns != "noarch" {
		t.Fatalf("got (%q, %q), want (foo-1.0-1, noarch)", key, ns)
	}
}

func TestSplitKeyI586(t *testing.T) {
	key, ns, _, err := SplitKey("i586-foo-1.0-1.i586.rpm")
	if err != nil {
		t.Fatal(err)
	}
	if key != "foo-1.0-1" || ns != "i586-arepo" {
		t.Fatalf("got (%q, %q), want (foo-1.0-1, i586-arepo)", key, ns)
	}
}

func TestSplitKeyDebuginfo(t *testing.T) {
	key, ns, _, err := SplitKey("foo-debuginfo-1.0-1.x86_64.rpm")
	if err != nil {
		t.Fatal(err)
	}
	if key != "foo-1.0-1" || ns != "x86_64-debuginfo" {
		t.Fatalf("got (%q, %q), want (foo-1.0-1, x86_64-debuginfo)", key, ns)
	}
}

func TestSplitKeyRejectsNonRPM(t *testing.T) {
	if _, _, _, err := SplitKey("foo.txt"); err == nil {
		t.Fatal("expected error for non-.rpm filename")
	}
}

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	c, err := Open(false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func writeTempFile(t *testing.T, content string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pkg-1.0-1.x86_64.rpm")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestLookupComputesAndCaches(t *testing.T) {
	c := openTestCache(t)
	f := writeTempFile(t, "hello world")
	fi, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	mtime := fi.ModTime().Unix()

	sum1, err := c.Lookup("pkg-1.0-1.x86_64.rpm", fi.Size(), mtime, f)
	if err != nil {
		t.Fatal(err)
	}
	if len(sum1) != 32 {
		t.Fatalf("md5 hex length = %d, want 32", len(sum1))
	}

	sum2, err := c.Lookup("pkg-1.0-1.x86_64.rpm", fi.Size(), mtime, f)
	if err != nil {
		t.Fatal(err)
	}
	if sum1 != sum2 {
		t.Fatalf("second Lookup = %q, want %q (cache hit)", sum2, sum1)
	}
}

func TestLookupInvalidatesOnSizeMismatch(t *testing.T) {
	c := openTestCache(t)
	f := writeTempFile(t, "hello world")
	fi, _ := f.Stat()
	mtime := fi.ModTime().Unix()

	sum1, err := c.Lookup("pkg-1.0-1.x86_64.rpm", fi.Size(), mtime, f)
	if err != nil {
		t.Fatal(err)
	}

	// Same file handle, but claim a different size: forces recomputation
	// via the same content, so the digest should still match, but via the
	// recompute path rather than a cache hit. What we actually verify is
	// that a *different* recorded size causes the entry to be replaced
	// without error.
	sum2, err := c.Lookup("pkg-1.0-1.x86_64.rpm", fi.Size()+1, mtime, f)
	if err != nil {
		t.Fatal(err)
	}
	if sum1 != sum2 {
		t.Fatalf("recomputed digest = %q, want %q (same bytes)", sum2, sum1)
	}

	// A follow-up lookup with the original, correct size should now be a
	// fresh cache miss again (since the stored entry was just replaced
	// with size+1), landing back on the same digest.
	sum3, err := c.Lookup("pkg-1.0-1.x86_64.rpm", fi.Size(), mtime, f)
	if err != nil {
		t.Fatal(err)
	}
	if sum3 != sum1 {
		t.Fatalf("sum3 = %q, want %q", sum3, sum1)
	}
}

func TestSumWithoutCache(t *testing.T) {
	f := writeTempFile(t, "hello world")
	sum, err := Sum(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(sum) != 32 {
		t.Fatalf("md5 hex length = %d, want 32", len(sum))
	}
}
