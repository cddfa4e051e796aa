package virtualtree

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"arbor/internal/domain/models"
)

// NameMultimap is a locale-collated sorted map from display name to an
// insertion-ordered list of folder ids sharing that name. Multiple distinct
// folders legitimately share a display name (a "Trash" per account, say) and
// must stay stably ordered by source arrival instead of colliding, hence the
// two-level structure.
//
// Names are compared with a secondary-strength collator for the request
// locale: case and diacritic differences do not separate buckets.
type NameMultimap struct {
	col     *collate.Collator
	names   []string            // bucket names, kept in collated order
	buckets map[string][]string // bucket name -> ids in insertion order
}

// NewNameMultimap builds an empty multimap collating for the given locale.
func NewNameMultimap(locale language.Tag) *NameMultimap {
	return &NameMultimap{
		col:     collate.New(locale, collate.IgnoreCase, collate.IgnoreDiacritics),
		buckets: make(map[string][]string),
	}
}

// Add appends folderID under name, creating the bucket at its collated
// position when no collation-equal name exists yet.
func (m *NameMultimap) Add(name, folderID string) {
	pos := sort.Search(len(m.names), func(i int) bool {
		return m.col.CompareString(m.names[i], name) >= 0
	})
	if pos < len(m.names) && m.col.CompareString(m.names[pos], name) == 0 {
		m.buckets[m.names[pos]] = append(m.buckets[m.names[pos]], folderID)
		return
	}
	m.names = append(m.names, "")
	copy(m.names[pos+1:], m.names[pos:])
	m.names[pos] = name
	m.buckets[name] = []string{folderID}
}

// Contains reports whether a collation-equal name is present.
func (m *NameMultimap) Contains(name string) bool {
	pos := sort.Search(len(m.names), func(i int) bool {
		return m.col.CompareString(m.names[i], name) >= 0
	})
	return pos < len(m.names) && m.col.CompareString(m.names[pos], name) == 0
}

// Len returns the number of folder ids held.
func (m *NameMultimap) Len() int {
	n := 0
	for _, ids := range m.buckets {
		n += len(ids)
	}
	return n
}

// Flatten iterates sorted names then each name's ids in insertion order,
// assigning consecutive ordinals starting at base.
func (m *NameMultimap) Flatten(base int) []models.OrderingKey {
	out := make([]models.OrderingKey, 0, m.Len())
	ordinal := base
	for _, name := range m.names {
		for _, id := range m.buckets[name] {
			out = append(out, models.OrderingKey{FolderID: id, Ordinal: ordinal, Name: name})
			ordinal++
		}
	}
	return out
}
