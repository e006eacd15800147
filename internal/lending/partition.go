package lending

import "slices"

// Bucket is one partition of a collection.
type Bucket[K comparable, T any] struct {
	Key   K   `json:"key"`
	Items []T `json:"items"`
}

// Partition splits items into groups by key, then orders the groups with
// groupCmp and the items of each group with itemCmp. Groups start out in
// first-seen order and both sorts are stable, so ties keep input order.
// A nil comparator leaves that level unsorted.
func Partition[K comparable, T any](items []T, key func(T) K, groupCmp func(a, b Bucket[K, T]) int, itemCmp func(a, b T) int) []Bucket[K, T] {
	index := make(map[K]int)
	groups := []Bucket[K, T]{}

	for _, it := range items {
		k := key(it)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Bucket[K, T]{Key: k})
		}
		groups[i].Items = append(groups[i].Items, it)
	}

	if itemCmp != nil {
		for i := range groups {
			slices.SortStableFunc(groups[i].Items, itemCmp)
		}
	}
	if groupCmp != nil {
		slices.SortStableFunc(groups, groupCmp)
	}
	return groups
}
