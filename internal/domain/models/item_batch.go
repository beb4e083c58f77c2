package models

// AuthorizedItemBatch is an ordered request for several item names.
// A response of length N corresponds to the first N names.
type AuthorizedItemBatch struct {
	items []string
}

// NewAuthorizedItemBatch copies items into a batch, preserving order.
func NewAuthorizedItemBatch(items ...string) AuthorizedItemBatch {
	cp := make([]string, len(items))
	copy(cp, items)
	return AuthorizedItemBatch{items: cp}
}

func (b AuthorizedItemBatch) Len() int { return len(b.items) }

// Items returns a copy of the ordered item names.
func (b AuthorizedItemBatch) Items() []string {
	cp := make([]string, len(b.items))
	copy(cp, b.items)
	return cp
}

// At returns the item name at position i.
func (b AuthorizedItemBatch) At(i int) string { return b.items[i] }

// Prefix returns the first n names, clamped to the batch length.
func (b AuthorizedItemBatch) Prefix(n int) []string {
	if n > len(b.items) {
		n = len(b.items)
	}
	if n < 0 {
		n = 0
	}
	cp := make([]string, n)
	copy(cp, b.items[:n])
	return cp
}
