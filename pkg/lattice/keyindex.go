package lattice

import "github.com/tidwall/btree"

// KeyEntry is one (key, id) pair held by a KeyIndex.
type KeyEntry struct {
	Key Key
	ID  NodeID
}

// KeyIndex is an ordered in-memory view of stored keys, backed by a
// B-tree. It is a detached snapshot: mutations of the store after the
// snapshot was taken are not reflected. Not safe for concurrent writes.
type KeyIndex struct {
	tr *btree.BTreeG[KeyEntry]
}

// NewKeyIndex returns an empty index ordered lexicographically by key.
func NewKeyIndex() *KeyIndex {
	return &KeyIndex{
		tr: btree.NewBTreeG(func(a, b KeyEntry) bool { return a.Key.Less(b.Key) }),
	}
}

// Set records the id for a key, replacing any previous entry.
func (ix *KeyIndex) Set(k Key, id NodeID) {
	ix.tr.Set(KeyEntry{Key: k, ID: id})
}

// Get looks up the id stored for a key.
func (ix *KeyIndex) Get(k Key) (NodeID, bool) {
	e, ok := ix.tr.Get(KeyEntry{Key: k})
	if !ok {
		return 0, false
	}
	return e.ID, true
}

// Len reports the number of entries.
func (ix *KeyIndex) Len() int {
	return ix.tr.Len()
}

// Scan walks all entries in ascending key order until fn returns false.
func (ix *KeyIndex) Scan(fn func(k Key, id NodeID) bool) {
	ix.tr.Scan(func(e KeyEntry) bool { return fn(e.Key, e.ID) })
}

// Min returns the smallest entry, if any.
func (ix *KeyIndex) Min() (KeyEntry, bool) {
	return ix.tr.Min()
}

// Max returns the largest entry, if any.
func (ix *KeyIndex) Max() (KeyEntry, bool) {
	return ix.tr.Max()
}
