package virtualtree

import (
	"reflect"
	"testing"

	"golang.org/x/text/language"
)

func TestNameMultimapCollatedOrder(t *testing.T) {
	m := NewNameMultimap(language.English)
	m.Add("zeta", "z1")
	m.Add("Alpha", "a1")
	m.Add("mail", "m1")

	got := flattenIDs(m)
	want := []string{"a1", "m1", "z1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Flatten() ids = %v, want %v", got, want)
	}
}

func TestNameMultimapSharedNamesKeepArrivalOrder(t *testing.T) {
	// Multiple accounts legitimately expose a folder of the same name;
	// within the shared name, source-arrival order must be stable.
	m := NewNameMultimap(language.English)
	m.Add("Trash", "default0/Trash")
	m.Add("Archive", "default0/Archive")
	m.Add("trash", "default1/Trash") // collates equal to "Trash"
	m.Add("TRASH", "drive:trash")

	got := flattenIDs(m)
	want := []string{"default0/Archive", "default0/Trash", "default1/Trash", "drive:trash"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Flatten() ids = %v, want %v", got, want)
	}
}

func TestNameMultimapOrderIndependentOfInsertion(t *testing.T) {
	// Same entries in two different arrival interleavings: collated name
	// order must match, only the within-name order may reflect arrival.
	first := NewNameMultimap(language.German)
	first.Add("Büro", "b1")
	first.Add("Archiv", "a1")
	first.Add("Privat", "p1")

	second := NewNameMultimap(language.German)
	second.Add("Privat", "p1")
	second.Add("Büro", "b1")
	second.Add("Archiv", "a1")

	if got, want := flattenIDs(first), flattenIDs(second); !reflect.DeepEqual(got, want) {
		t.Fatalf("order depends on insertion: %v vs %v", got, want)
	}
}

func TestNameMultimapContains(t *testing.T) {
	m := NewNameMultimap(language.English)
	m.Add("Invoices", "f42")

	if !m.Contains("invoices") {
		t.Error("Contains() = false for collation-equal name")
	}
	if m.Contains("Receipts") {
		t.Error("Contains() = true for absent name")
	}
}

func TestNameMultimapFlattenOrdinals(t *testing.T) {
	m := NewNameMultimap(language.English)
	m.Add("b", "2")
	m.Add("a", "1")

	keys := m.Flatten(5)
	if keys[0].Ordinal != 5 || keys[1].Ordinal != 6 {
		t.Fatalf("ordinals = %d, %d, want 5, 6", keys[0].Ordinal, keys[1].Ordinal)
	}
}

func flattenIDs(m *NameMultimap) []string {
	keys := m.Flatten(0)
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.FolderID
	}
	return ids
}
