package grouping

import "certgrouper/internal/model"

// Groups is an insertion-ordered mapping from course name to documents.
// The zero value is not usable; call NewGroups.
type Groups struct {
	order []string
	docs  map[string][]model.Document
	total int
}

// NewGroups returns an empty Groups.
func NewGroups() *Groups {
	return &Groups{docs: make(map[string][]model.Document)}
}

// Group files every document under its parsed course name, preserving encounter order.
func Group(docs []model.Document) *Groups {
	g := NewGroups()
	for _, d := range docs {
		g.Add(d)
	}
	return g
}

// Add appends doc to the group named by its filename and returns that key.
func (g *Groups) Add(doc model.Document) string {
	key := ParseGroupKey(doc.BaseName)
	if _, ok := g.docs[key]; !ok {
		g.order = append(g.order, key)
	}
	g.docs[key] = append(g.docs[key], doc)
	g.total++
	return key
}

// Keys returns course names in first-seen order.
func (g *Groups) Keys() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Documents returns the documents filed under key, in encounter order.
func (g *Groups) Documents(key string) []model.Document {
	return g.docs[key]
}

// Len is the number of distinct courses.
func (g *Groups) Len() int { return len(g.order) }

// Total is the number of documents across all courses.
func (g *Groups) Total() int { return g.total }

// Counts reports per-course totals in first-seen order.
func (g *Groups) Counts() []model.GroupCount {
	out := make([]model.GroupCount, 0, len(g.order))
	for _, key := range g.order {
		out = append(out, model.GroupCount{
			Course:    key,
			Folder:    Sanitize(key),
			Documents: len(g.docs[key]),
		})
	}
	return out
}
