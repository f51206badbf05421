package dbadmin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Timestamp layout embedded in every export file name.
const tsLayout = "20060102_150405"

// File name prefixes of one export set.
const (
	PrefixMainDump      = "main_db_"
	PrefixSnapshotsDump = "snapshots_db_"
	PrefixKey           = "encryption_key_"
	PrefixManifest      = "export_manifest_"
)

// ExportSet names the files produced by one export run.
type ExportSet struct {
	Timestamp     string
	MainDump      string
	SnapshotsDump string
	KeyCopy       string
	Manifest      string
}

// NewExportSet builds the file names for an export taken at t.
func NewExportSet(t time.Time) ExportSet {
	ts := t.UTC().Format(tsLayout)
	return ExportSet{
		Timestamp:     ts,
		MainDump:      PrefixMainDump + ts + ".sql",
		SnapshotsDump: PrefixSnapshotsDump + ts + ".sql",
		KeyCopy:       PrefixKey + ts + ".txt",
		Manifest:      PrefixManifest + ts + ".txt",
	}
}

// FindNewest returns the newest file in dir matching prefix + timestamp
// + ext. Timestamps sort lexicographically, so the greatest name wins.
func FindNewest(dir, prefix, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read export dir: %w", err)
	}

	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ext) {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no %s*%s file found in %s", prefix, ext, dir)
	}

	sort.Strings(matches)
	return filepath.Join(dir, matches[len(matches)-1]), nil
}
