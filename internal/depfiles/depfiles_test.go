package depfiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alt-tools/genbasedir/internal/fingerprint"
	"github.com/alt-tools/genbasedir/internal/header"
)

func buildHeader(t *testing.T, provide, require, conflict []string) *header.Header {
	t.Helper()
	var b header.Builder
	b.AddStringArray(header.TagProvideName, provide)
	b.AddStringArray(header.TagRequireName, require)
	if conflict != nil {
		b.AddStringArray(header.TagConflictName, conflict)
	}
	return b.Build()
}

func TestCollectFromHeaderAddsFileDeps(t *testing.T) {
	h := buildHeader(t,
		[]string{"/usr/lib/libfoo.so.1"},
		[]string{"/etc/foo.conf", "libc.so.6()(64bit)"},
		nil,
	)
	fp := fingerprint.New()
	if err := CollectFromHeader(h, fp); err != nil {
		t.Fatal(err)
	}

	dirFP := fp.DirFP("/usr/lib/")
	want := fingerprint.FileFP(dirFP, "libfoo.so.1")
	if !fp.Contains(want) {
		t.Error("expected /usr/lib/libfoo.so.1 fingerprint present")
	}
	dirFP2 := fp.DirFP("/etc/")
	want2 := fingerprint.FileFP(dirFP2, "foo.conf")
	if !fp.Contains(want2) {
		t.Error("expected /etc/foo.conf fingerprint present")
	}
}

func TestCollectFromHeaderSkipsBindir(t *testing.T) {
	h := buildHeader(t,
		[]string{"/usr/bin/foo"},
		[]string{"/bin/sh"},
		nil,
	)
	fp := fingerprint.New()
	if err := CollectFromHeader(h, fp); err != nil {
		t.Fatal(err)
	}
	if fp.Len() != 0 {
		t.Errorf("bindir-only deps should add nothing, got Len()=%d", fp.Len())
	}
}

func TestCollectFromHeaderSkipsSyntheticExpressions(t *testing.T) {
	h := buildHeader(t,
		[]string{"/usr/lib64/firefox/libxul.so()(64bit)"},
		[]string{"rpmlib(CompressedFileNames)"},
		nil,
	)
	fp := fingerprint.New()
	if err := CollectFromHeader(h, fp); err != nil {
		t.Fatal(err)
	}
	if fp.Len() != 0 {
		t.Errorf("synthetic/non-path deps should add nothing, got Len()=%d", fp.Len())
	}
}

func TestCollectFromHeaderUsesConflictName(t *testing.T) {
	h := buildHeader(t,
		[]string{"/usr/lib/libfoo.so.1"},
		[]string{"/etc/foo.conf"},
		[]string{"/etc/bar.conf"},
	)
	fp := fingerprint.New()
	if err := CollectFromHeader(h, fp); err != nil {
		t.Fatal(err)
	}
	dirFP := fp.DirFP("/etc/")
	if !fp.Contains(fingerprint.FileFP(dirFP, "bar.conf")) {
		t.Error("expected CONFLICTNAME entry to be fingerprinted")
	}
}

func TestCollectFromHeaderMissingRequireNameErrors(t *testing.T) {
	var b header.Builder
	b.AddStringArray(header.TagProvideName, []string{"/usr/lib/libfoo.so.1"})
	h := b.Build()
	fp := fingerprint.New()
	if err := CollectFromHeader(h, fp); err == nil {
		t.Fatal("expected error for header with no REQUIRENAME")
	}
}

// buildBlob constructs a header blob shaped so that PROVIDENAME lands at the
// canonical index-13 position (no EPOCH tag present), REQUIRENAME at +2, and
// CONFLICTNAME at +3 after that — matching the real-world tag layout the
// blob form's positional shortcut assumes.
func buildBlob(t *testing.T, provide, require, conflict []string) []byte {
	t.Helper()
	var b header.Builder
	// Calls below are in ascending tag order, matching how a real header
	// builder lays out its data area (index order and data-area order
	// coincide), which is what lets CollectFromBlob use each entry's
	// successor offset as its block's upper bound.
	b.AddString(header.Tag(1000), "pkg") // NAME
	b.AddString(header.Tag(1001), "1.0") // VERSION
	b.AddString(header.Tag(1002), "1")   // RELEASE
	for _, tag := range []header.Tag{1004, 1005, 1006, 1007, 1008, 1009, 1010, 1011, 1012, 1013} {
		b.AddInt32(tag, []int32{0})
	}
	// 13 entries so far (indices 0..12); PROVIDENAME lands at index 13.
	b.AddStringArray(header.TagProvideName, provide)       // index 13
	b.AddStringArray(header.Tag(1048), []string{"filler"}) // index 14, between provide and require
	b.AddStringArray(header.TagRequireName, require)       // index 15
	b.AddStringArray(header.Tag(1050), []string{"filler"}) // index 16
	b.AddStringArray(header.Tag(1052), []string{"filler"}) // index 17
	if conflict != nil {
		b.AddStringArray(header.TagConflictName, conflict) // index 18
	}
	return b.Build().Bytes()
}

func TestCollectFromBlobPositionalShortcut(t *testing.T) {
	blob := buildBlob(t,
		[]string{"/usr/lib/libfoo.so.1"},
		[]string{"/etc/foo.conf"},
		[]string{"/etc/bar.conf"},
	)
	fp := fingerprint.New()
	if err := CollectFromBlob(blob, fp); err != nil {
		t.Fatal(err)
	}
	dirFP := fp.DirFP("/usr/lib/")
	if !fp.Contains(fingerprint.FileFP(dirFP, "libfoo.so.1")) {
		t.Error("expected PROVIDENAME entry to be fingerprinted")
	}
	etcFP := fp.DirFP("/etc/")
	if !fp.Contains(fingerprint.FileFP(etcFP, "foo.conf")) {
		t.Error("expected REQUIRENAME entry to be fingerprinted")
	}
	if !fp.Contains(fingerprint.FileFP(etcFP, "bar.conf")) {
		t.Error("expected CONFLICTNAME entry to be fingerprinted")
	}
}

func TestCollectFromBlobWithoutConflictName(t *testing.T) {
	blob := buildBlob(t,
		[]string{"/usr/lib/libfoo.so.1"},
		[]string{"/etc/foo.conf"},
		nil,
	)
	fp := fingerprint.New()
	if err := CollectFromBlob(blob, fp); err != nil {
		t.Fatal(err)
	}
	if fp.Len() == 0 {
		t.Fatal("expected some fingerprints from PROVIDENAME/REQUIRENAME")
	}
}

func TestCollectFromBlobDetectsAdjacencyViolation(t *testing.T) {
	// A minimal blob with PROVIDENAME not at the expected position: the
	// positional guess must be verified and rejected, not silently trusted.
	var b header.Builder
	b.AddStringArray(header.TagProvideName, []string{"/usr/lib/libfoo.so.1"})
	b.AddStringArray(header.TagRequireName, []string{"/etc/foo.conf"})
	blob := b.Build().Bytes()

	fp := fingerprint.New()
	if err := CollectFromBlob(blob, fp); err == nil {
		t.Fatal("expected an error when PROVIDENAME isn't at the assumed index")
	}
}

func TestCollectFromBlobTooSmall(t *testing.T) {
	fp := fingerprint.New()
	if err := CollectFromBlob([]byte{0, 1, 2}, fp); err == nil {
		t.Fatal("expected error for undersized blob")
	}
}

func TestReadUsefulFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "useful.list")
	content := "# comment\n/usr/lib/libfoo.so.1\n\n/etc/foo.conf\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	fp := fingerprint.New()
	if err := ReadUsefulFiles(path, '\n', fp); err != nil {
		t.Fatal(err)
	}
	dirFP := fp.DirFP("/usr/lib/")
	if !fp.Contains(fingerprint.FileFP(dirFP, "libfoo.so.1")) {
		t.Error("expected seed file entry to be fingerprinted")
	}
	// Two paths in distinct directories, each adding a directory and a file
	// fingerprint.
	if fp.Len() != 4 {
		t.Errorf("Len() = %d, want 4 (comment and blank line ignored)", fp.Len())
	}
}

func TestReadUsefulFilesNulDelimited(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "useful0.list")
	content := "/usr/bin/foo\x00/etc/bar.conf\x00"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	fp := fingerprint.New()
	if err := ReadUsefulFiles(path, 0, fp); err != nil {
		t.Fatal(err)
	}
	// /usr/bin/ is a bindir, so only /etc/bar.conf should register, as a
	// directory fingerprint plus a file fingerprint.
	if fp.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (bindir entry skipped)", fp.Len())
	}
}

func TestReadUsefulFilesMissingPath(t *testing.T) {
	fp := fingerprint.New()
	if err := ReadUsefulFiles("/nonexistent/path/here", '\n', fp); err == nil {
		t.Fatal("expected error for missing file")
	}
}
