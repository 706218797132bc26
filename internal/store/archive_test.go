package store

import (
	"bytes"
	"compress/gzip"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCompressDay(t *testing.T) {
	dir := t.TempDir()

	sources := map[string]string{
		"SPX.20240315.csv": "Time,Strike\n1,5000\n",
		"SPX.20240322.csv": "Time,Strike\n1,5100\n",
		"SPX.20240419.csv": "Time,Strike\n1,5200\n",
	}
	for name, content := range sources {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	// A leftover archive from an earlier pass whose source is gone.
	if err := os.WriteFile(filepath.Join(dir, "SPX.20240301.csv.gz"), []byte("old"), 0o644); err != nil {
		t.Fatalf("writing stale archive: %v", err)
	}

	a := NewArchiver(discardLogger())
	if err := a.CompressDay(dir); err != nil {
		t.Fatalf("CompressDay: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	if len(entries) != 7 {
		t.Errorf("got %d entries, want 7 (3 csv + 3 new gz + 1 old gz)", len(entries))
	}

	for name, content := range sources {
		src := filepath.Join(dir, name)

		// Original untouched.
		data, err := os.ReadFile(src)
		if err != nil || string(data) != content {
			t.Errorf("original %s modified or unreadable: %v", name, err)
		}

		// Archive content identical to source.
		f, err := os.Open(src + ".gz")
		if err != nil {
			t.Fatalf("opening archive for %s: %v", name, err)
		}
		gz, err := gzip.NewReader(f)
		if err != nil {
			t.Fatalf("gzip reader for %s: %v", name, err)
		}
		unpacked, err := io.ReadAll(gz)
		f.Close()
		if err != nil {
			t.Fatalf("decompressing %s: %v", name, err)
		}
		if !bytes.Equal(unpacked, []byte(content)) {
			t.Errorf("archive content for %s differs from source", name)
		}
	}
}

func TestCompressDayIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "SPX.20240315.csv")
	if err := os.WriteFile(src, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatalf("writing source: %v", err)
	}

	a := NewArchiver(discardLogger())
	if err := a.CompressDay(dir); err != nil {
		t.Fatalf("first CompressDay: %v", err)
	}

	info1, err := os.Stat(src + ".gz")
	if err != nil {
		t.Fatalf("stat archive: %v", err)
	}

	// Grow the source, re-archive: the existing archive must not be rewritten.
	if err := os.WriteFile(src, []byte("a,b\n1,2\n3,4\n"), 0o644); err != nil {
		t.Fatalf("rewriting source: %v", err)
	}
	if err := a.CompressDay(dir); err != nil {
		t.Fatalf("second CompressDay: %v", err)
	}

	info2, err := os.Stat(src + ".gz")
	if err != nil {
		t.Fatalf("re-stat archive: %v", err)
	}
	if info1.Size() != info2.Size() || !info1.ModTime().Equal(info2.ModTime()) {
		t.Error("existing archive was rewritten")
	}
}

func TestCompressDayMissingDir(t *testing.T) {
	a := NewArchiver(discardLogger())
	if err := a.CompressDay(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Errorf("missing day dir should not be an error, got %v", err)
	}
}
