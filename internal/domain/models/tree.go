package models

import "sort"

// OrderingKey imposes a stable client-visible subfolder sequence distinct
// from any backend's native order. Ordering and identity are ordinal-based:
// two keys with equal ordinal denote the same position, so callers must
// assign unique ordinals before inserting keys into any set-like structure.
type OrderingKey struct {
	FolderID string `json:"folder_id"`
	Ordinal  int    `json:"ordinal"`
	Name     string `json:"name,omitempty"`
}

// Less orders keys by ordinal.
func (k OrderingKey) Less(o OrderingKey) bool { return k.Ordinal < o.Ordinal }

// SortOrderingKeys sorts keys in place by ordinal.
func SortOrderingKeys(keys []OrderingKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// OrderingKeyIDs flattens keys (already in presentation order) to folder ids.
func OrderingKeyIDs(keys []OrderingKey) []string {
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.FolderID
	}
	return ids
}
