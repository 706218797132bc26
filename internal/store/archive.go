package store

import (
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Archiver gzip-compresses a finished day's CSV files. Each <name>.csv gains
// a sibling <name>.csv.gz; originals are left in place. Files that already
// have an archive are skipped, so the pass is idempotent.
type Archiver struct {
	log *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(log *slog.Logger) *Archiver {
	return &Archiver{log: log.With("component", "archiver")}
}

// CompressDay archives every .csv file directly inside dir. A missing
// directory is not an error: it means no data was collected that day.
func (a *Archiver) CompressDay(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			a.log.Info("no day directory to archive", "dir", dir)
			return nil
		}
		return fmt.Errorf("reading day dir %s: %w", dir, err)
	}

	archived := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}

		src := filepath.Join(dir, e.Name())
		dst := src + ".gz"
		if _, err := os.Stat(dst); err == nil {
			continue
		}

		if err := gzipFile(src, dst); err != nil {
			return fmt.Errorf("archiving %s: %w", src, err)
		}
		archived++
	}

	a.log.Info("day archived", "dir", dir, "files", archived)
	return nil
}

// gzipFile compresses src into dst, leaving src untouched.
func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}
