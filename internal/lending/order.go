package lending

import (
	"cmp"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/erazemk/nycklar/internal/model"
)

// typeOrder lists key types by display priority. Types not listed sort
// after all of them.
var typeOrder = []string{
	model.KeyTypeApartment,
	model.KeyTypeMailbox,
	model.KeyTypeProperty,
	model.KeyTypeMaster,
}

// collationTag is the locale used for ordering names.
var collationTag = language.Swedish

// TypePriority returns the sort rank of a key type code. Lower sorts first.
func TypePriority(keyType string) int {
	if i := slices.Index(typeOrder, keyType); i >= 0 {
		return i
	}
	return len(typeOrder)
}

// keyOrder compares keys by type priority, name and sequence number.
// It holds a collator, so it must not be shared between goroutines.
type keyOrder struct {
	col *collate.Collator
}

func newKeyOrder() *keyOrder {
	return &keyOrder{col: collate.New(collationTag)}
}

func (o *keyOrder) compare(a, b model.Key) int {
	if c := cmp.Compare(TypePriority(a.Type), TypePriority(b.Type)); c != 0 {
		return c
	}
	if c := o.col.CompareString(a.Name, b.Name); c != 0 {
		return c
	}
	return compareSequence(a.SequenceNumber, b.SequenceNumber)
}

// compareSequence orders numbered keys ascending, unnumbered last.
func compareSequence(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return cmp.Compare(*a, *b)
	}
}

// SortKeys sorts keys in place in display order. The sort is stable.
func SortKeys(keys []model.Key) {
	o := newKeyOrder()
	slices.SortStableFunc(keys, o.compare)
}
