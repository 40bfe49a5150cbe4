package model

// InputArchive is one uploaded employee archive.
// Data is expected to be a ZIP container but may be malformed.
type InputArchive struct {
	Name string
	Data []byte
}

// Document is a qualifying PDF entry pulled out of an InputArchive.
// BaseName is the final path segment of the entry and is carried verbatim into the output.
// Source names the archive it came from; it is informational only.
type Document struct {
	BaseName string
	Content  []byte
	Source   string
}
