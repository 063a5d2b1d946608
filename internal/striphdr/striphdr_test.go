package striphdr

import (
	"testing"

	"github.com/alt-tools/genbasedir/internal/fingerprint"
	"github.com/alt-tools/genbasedir/internal/header"
)

func buildSource(t *testing.T, dirnames, basenames []string, dirindexes []int32) *header.Header {
	t.Helper()
	var b header.Builder
	b.AddStringArray(header.TagDirNames, dirnames)
	b.AddStringArray(header.TagBasenames, basenames)
	b.AddInt32(header.TagDirIndexes, dirindexes)
	return b.Build()
}

func TestStripNoFileTripleIsNotOK(t *testing.T) {
	var b header.Builder
	h1 := b.Build() // no DIRNAMES at all
	fp := fingerprint.New()
	var out header.Builder
	ok, err := Strip(h1, fp, &out)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("Strip() ok = true for header with no file triple")
	}
}

func TestStripDropsEverythingWhenNothingUseful(t *testing.T) {
	h1 := buildSource(t,
		[]string{"/opt/nowhere/"},
		[]string{"file1"},
		[]int32{0},
	)
	fp := fingerprint.New()
	var out header.Builder
	ok, err := Strip(h1, fp, &out)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("Strip() ok = true, want false (no dir is BIN or CHECK)")
	}
}

func TestStripKeepsBindirUnconditionally(t *testing.T) {
	h1 := buildSource(t,
		[]string{"/usr/bin/", "/opt/nowhere/"},
		[]string{"foo", "bar"},
		[]int32{0, 1},
	)
	fp := fingerprint.New()
	var out header.Builder
	ok, err := Strip(h1, fp, &out)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("Strip() ok = false, want true")
	}
	h2 := out.Build()

	bnE, _ := h2.Find(header.TagBasenames)
	basenames, err := h2.StringArray(bnE)
	if err != nil {
		t.Fatal(err)
	}
	if len(basenames) != 1 || basenames[0] != "foo" {
		t.Fatalf("BASENAMES = %v, want [foo]", basenames)
	}

	dnE, _ := h2.Find(header.TagDirNames)
	dirnames, err := h2.StringArray(dnE)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirnames) != 1 || dirnames[0] != "/usr/bin/" {
		t.Fatalf("DIRNAMES = %v, want [/usr/bin/]", dirnames)
	}
}

func TestStripKeepsCheckedFileWhenFingerprinted(t *testing.T) {
	fp := fingerprint.New()
	dirFP := fp.DirFP("/usr/lib/")
	fp.Add(dirFP)
	fp.Add(fingerprint.FileFP(dirFP, "libfoo.so.1"))

	h1 := buildSource(t,
		[]string{"/usr/lib/"},
		[]string{"libfoo.so.1", "libbar.so.1"},
		[]int32{0, 0},
	)
	var out header.Builder
	ok, err := Strip(h1, fp, &out)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("Strip() ok = false, want true")
	}
	h2 := out.Build()
	bnE, _ := h2.Find(header.TagBasenames)
	basenames, _ := h2.StringArray(bnE)
	if len(basenames) != 1 || basenames[0] != "libfoo.so.1" {
		t.Fatalf("BASENAMES = %v, want [libfoo.so.1]", basenames)
	}
}

func TestStripRemapsDirIndexesAndDedupes(t *testing.T) {
	fp := fingerprint.New()
	h1 := buildSource(t,
		[]string{"/usr/bin/", "/opt/nowhere/", "/usr/sbin/"},
		[]string{"a", "dead", "b", "c"},
		[]int32{0, 1, 2, 0},
	)
	var out header.Builder
	ok, err := Strip(h1, fp, &out)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("Strip() ok = false, want true")
	}
	h2 := out.Build()

	dnE, _ := h2.Find(header.TagDirNames)
	dirnames, _ := h2.StringArray(dnE)
	if len(dirnames) != 2 {
		t.Fatalf("DIRNAMES = %v, want 2 entries (deduped, /opt/nowhere/ dropped)", dirnames)
	}

	diE, _ := h2.Find(header.TagDirIndexes)
	dirindexes, _ := h2.Int32Array(diE)
	if len(dirindexes) != 3 {
		t.Fatalf("DIRINDEXES length = %d, want 3 (file at /opt/nowhere/ dropped)", len(dirindexes))
	}
	// a and c share /usr/bin/, so they must resolve to the same output dj.
	if dirindexes[0] != dirindexes[2] {
		t.Errorf("DIRINDEXES[0]=%d != DIRINDEXES[2]=%d, want equal (same source dir)", dirindexes[0], dirindexes[2])
	}
}

func TestStripMismatchedArrayLengthsErrors(t *testing.T) {
	var b header.Builder
	b.AddStringArray(header.TagDirNames, []string{"/usr/bin/"})
	b.AddStringArray(header.TagBasenames, []string{"a", "b"})
	b.AddInt32(header.TagDirIndexes, []int32{0})
	h1 := b.Build()

	fp := fingerprint.New()
	var out header.Builder
	_, err := Strip(h1, fp, &out)
	if err == nil {
		t.Fatal("expected error for mismatched BASENAMES/DIRINDEXES lengths")
	}
}
