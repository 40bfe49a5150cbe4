package archive

import (
	"bytes"
	"fmt"
	"time"

	"github.com/klauspost/compress/zip"

	"certgrouper/internal/grouping"
)

// ContentType is the MIME type of the grouped output.
const ContentType = "application/zip"

// PackageStats describes what Package wrote.
type PackageStats struct {
	// Entries is the number of distinct paths in the output.
	Entries int
	// Overwritten counts documents replaced by a later document with the same path.
	Overwritten int
}

type entry struct {
	path    string
	content []byte
}

// EntryPath is the output location of a document filed under key.
func EntryPath(key, baseName string) string {
	return grouping.Sanitize(key) + "/" + baseName
}

// Plan reports the entries Package would write for groups without serializing anything.
func Plan(groups *grouping.Groups) PackageStats {
	_, stats := layout(groups)
	return stats
}

// Package serializes grouped documents into a single ZIP, one folder per sanitized course name.
// Groups are written in first-seen order. When two documents map to the same path the later
// one wins and the output holds a single entry for that path.
func Package(groups *grouping.Groups) ([]byte, PackageStats, error) {
	entries, stats := layout(groups)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := time.Now()
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.path,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, PackageStats{}, fmt.Errorf("create entry %s: %w", e.path, err)
		}
		if _, err := w.Write(e.content); err != nil {
			return nil, PackageStats{}, fmt.Errorf("write entry %s: %w", e.path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, PackageStats{}, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), stats, nil
}

// layout resolves output paths in write order, collapsing collisions onto the first slot.
func layout(groups *grouping.Groups) ([]entry, PackageStats) {
	var entries []entry
	var stats PackageStats
	index := make(map[string]int)
	for _, key := range groups.Keys() {
		for _, d := range groups.Documents(key) {
			p := EntryPath(key, d.BaseName)
			if i, ok := index[p]; ok {
				entries[i].content = d.Content
				stats.Overwritten++
				continue
			}
			index[p] = len(entries)
			entries = append(entries, entry{path: p, content: d.Content})
		}
	}
	stats.Entries = len(entries)
	return entries, stats
}
