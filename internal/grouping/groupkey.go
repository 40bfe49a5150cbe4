// Package grouping derives course names from certificate filenames and
// collects documents under them.
package grouping

import (
	"regexp"
	"strings"
)

const (
	// UnknownCourse is the key used when a filename carries no course separator.
	UnknownCourse = "Unknown_Course"

	extensionLen  = len(".pdf")
	idSeparator   = " -  #"
	nameSeparator = " - "
)

var unsafeRun = regexp.MustCompile(`[^A-Za-z0-9._()-]+`)

// ParseGroupKey returns the course name encoded in a certificate filename such as
// "Jane Doe - Fire Safety -  #12345.pdf".
//
// The trailing extension and any " -  #<ID>" suffix are dropped, then everything after the
// first " - " is the course. Filenames without that separator map to UnknownCourse.
// A separator followed only by whitespace yields an empty key.
func ParseGroupKey(baseName string) string {
	stem := ""
	if len(baseName) >= extensionLen {
		stem = baseName[:len(baseName)-extensionLen]
	}

	left := stem
	if i := strings.Index(stem, idSeparator); i >= 0 {
		left = stem[:i]
	}

	_, course, found := strings.Cut(left, nameSeparator)
	if !found {
		return UnknownCourse
	}
	return strings.TrimSpace(course)
}

// Sanitize turns a course name into a single archive path segment.
// Every maximal run of characters outside [A-Za-z0-9._()-] becomes one underscore,
// so Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(key string) string {
	return unsafeRun.ReplaceAllString(key, "_")
}
