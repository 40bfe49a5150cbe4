// Package archive reads employee certificate archives and writes the grouped output archive.
// All work happens on in-memory byte slices.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/klauspost/compress/zip"

	"certgrouper/internal/model"
)

const pdfExt = ".pdf"

// ErrBadArchive matches every BadArchiveError via errors.Is.
var ErrBadArchive = errors.New("bad archive")

// BadArchiveError reports an input that could not be read as a ZIP container.
// It aborts the whole batch.
type BadArchiveError struct {
	Name string
	Err  error
}

func (e *BadArchiveError) Error() string {
	return fmt.Sprintf("%s is not a valid ZIP file: %v", e.Name, e.Err)
}

func (e *BadArchiveError) Unwrap() error { return e.Err }

// Is reports whether target is ErrBadArchive.
func (e *BadArchiveError) Is(target error) bool { return target == ErrBadArchive }

// Walk lazily yields the qualifying documents of each archive in order.
// On the first archive that cannot be read it yields a *BadArchiveError and stops.
func Walk(archives []model.InputArchive) iter.Seq2[model.Document, error] {
	return func(yield func(model.Document, error) bool) {
		for _, in := range archives {
			zr, err := zip.NewReader(bytes.NewReader(in.Data), int64(len(in.Data)))
			if err != nil {
				yield(model.Document{}, &BadArchiveError{Name: in.Name, Err: err})
				return
			}

			for _, f := range zr.File {
				if f.FileInfo().IsDir() {
					continue
				}
				base := baseName(f.Name)
				if !IsQualifying(base) {
					continue
				}

				content, err := readEntry(f)
				if err != nil {
					yield(model.Document{}, &BadArchiveError{Name: in.Name, Err: fmt.Errorf("read %s: %w", f.Name, err)})
					return
				}
				if !yield(model.Document{BaseName: base, Content: content, Source: in.Name}, nil) {
					return
				}
			}
		}
	}
}

// Extract collects every qualifying document across archives.
// If any archive is malformed it returns no documents at all, only the *BadArchiveError.
func Extract(archives []model.InputArchive) ([]model.Document, error) {
	var docs []model.Document
	for d, err := range Walk(archives) {
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// IsQualifying reports whether a base filename ends in .pdf, ignoring case.
func IsQualifying(base string) bool {
	return len(base) >= len(pdfExt) && strings.EqualFold(base[len(base)-len(pdfExt):], pdfExt)
}

// baseName returns the final slash-separated segment of an entry name.
func baseName(name string) string {
	return name[strings.LastIndexByte(name, '/')+1:]
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
