package chat

import "sort"

// VecKind tags which edit a VecMutation performs. The family is
// closed: Splice, InsertOne, InsertMany, Extend, Push, RemoveRange,
// RemoveOne, RemoveMany, RemoveLast, Clear, Update, UpdateLast, Set —
// exactly the variants enumerated in spec.md §3.
type VecKind uint8

const (
	VecSplice VecKind = iota
	VecInsertOne
	VecInsertMany
	VecExtend
	VecPush
	VecRemoveRange
	VecRemoveOne
	VecRemoveMany
	VecRemoveLast
	VecClear
	VecUpdate
	VecUpdateLast
	VecSet
)

// VecMutation is a closed family of pure vector edits: every variant
// is a function from a slice to a new slice. It never mutates its
// input.
type VecMutation[T any] struct {
	Kind VecKind

	Index      int      // InsertOne, RemoveOne, Update
	Item       T        // InsertOne, Push, Update, UpdateLast
	Items      []T      // Splice, InsertMany, Extend, Set
	Start, End int      // Splice (Start, deleteCount via End), RemoveRange
	Indices    IndexSet // RemoveMany
}

// Splice builds a VecSplice mutation: remove deleteCount elements
// starting at start, then insert items at that position.
func Splice[T any](start, deleteCount int, items []T) VecMutation[T] {
	return VecMutation[T]{Kind: VecSplice, Start: start, End: deleteCount, Items: items}
}

// InsertOne builds a VecInsertOne mutation.
func InsertOne[T any](index int, item T) VecMutation[T] {
	return VecMutation[T]{Kind: VecInsertOne, Index: index, Item: item}
}

// InsertMany builds a VecInsertMany mutation.
func InsertMany[T any](index int, items []T) VecMutation[T] {
	return VecMutation[T]{Kind: VecInsertMany, Index: index, Items: items}
}

// Extend builds a VecExtend mutation: append items to the end.
func Extend[T any](items []T) VecMutation[T] {
	return VecMutation[T]{Kind: VecExtend, Items: items}
}

// Push builds a VecPush mutation: append a single item.
func Push[T any](item T) VecMutation[T] {
	return VecMutation[T]{Kind: VecPush, Item: item}
}

// RemoveRange builds a VecRemoveRange mutation over [start, end).
func RemoveRange[T any](start, end int) VecMutation[T] {
	return VecMutation[T]{Kind: VecRemoveRange, Start: start, End: end}
}

// RemoveOne builds a VecRemoveOne mutation.
func RemoveOne[T any](index int) VecMutation[T] {
	return VecMutation[T]{Kind: VecRemoveOne, Index: index}
}

// RemoveMany builds a VecRemoveMany mutation over a sparse index set.
func RemoveMany[T any](indices IndexSet) VecMutation[T] {
	return VecMutation[T]{Kind: VecRemoveMany, Indices: indices}
}

// RemoveLast builds a VecRemoveLast mutation.
func RemoveLast[T any]() VecMutation[T] {
	return VecMutation[T]{Kind: VecRemoveLast}
}

// ClearVec builds a VecClear mutation.
func ClearVec[T any]() VecMutation[T] {
	return VecMutation[T]{Kind: VecClear}
}

// Update builds a VecUpdate mutation: replace the element at index.
func Update[T any](index int, item T) VecMutation[T] {
	return VecMutation[T]{Kind: VecUpdate, Index: index, Item: item}
}

// UpdateLast builds a VecUpdateLast mutation: replace the last element.
func UpdateLast[T any](item T) VecMutation[T] {
	return VecMutation[T]{Kind: VecUpdateLast, Item: item}
}

// Set builds a VecSet mutation: replace the whole vector.
func Set[T any](items []T) VecMutation[T] {
	return VecMutation[T]{Kind: VecSet, Items: items}
}

// Apply computes the vector that results from applying m to l, without
// mutating l.
func (m VecMutation[T]) Apply(l []T) []T {
	switch m.Kind {
	case VecSplice:
		return spliceSlice(l, m.Start, m.End, m.Items)
	case VecInsertOne:
		return spliceSlice(l, m.Index, 0, []T{m.Item})
	case VecInsertMany:
		return spliceSlice(l, m.Index, 0, m.Items)
	case VecExtend:
		out := make([]T, 0, len(l)+len(m.Items))
		out = append(out, l...)
		out = append(out, m.Items...)
		return out
	case VecPush:
		out := make([]T, 0, len(l)+1)
		out = append(out, l...)
		return append(out, m.Item)
	case VecRemoveRange:
		return spliceSlice(l, m.Start, m.End-m.Start, nil)
	case VecRemoveOne:
		return spliceSlice(l, m.Index, 1, nil)
	case VecRemoveMany:
		return removeIndices(l, m.Indices)
	case VecRemoveLast:
		if len(l) == 0 {
			return copySlice(l)
		}
		return spliceSlice(l, len(l)-1, 1, nil)
	case VecClear:
		return []T{}
	case VecUpdate:
		out := copySlice(l)
		if m.Index >= 0 && m.Index < len(out) {
			out[m.Index] = m.Item
		}
		return out
	case VecUpdateLast:
		out := copySlice(l)
		if len(out) > 0 {
			out[len(out)-1] = m.Item
		}
		return out
	case VecSet:
		return copySlice(m.Items)
	default:
		return copySlice(l)
	}
}

func copySlice[T any](l []T) []T {
	out := make([]T, len(l))
	copy(out, l)
	return out
}

// spliceSlice removes deleteCount elements starting at start and
// inserts items there, returning a new slice. start and deleteCount
// are clamped to the bounds of l.
func spliceSlice[T any](l []T, start, deleteCount int, items []T) []T {
	if start < 0 {
		start = 0
	}
	if start > len(l) {
		start = len(l)
	}
	if deleteCount < 0 {
		deleteCount = 0
	}
	end := start + deleteCount
	if end > len(l) {
		end = len(l)
	}

	out := make([]T, 0, len(l)-(end-start)+len(items))
	out = append(out, l[:start]...)
	out = append(out, items...)
	out = append(out, l[end:]...)
	return out
}

// removeIndices deletes every index in idx from l in a single
// retention pass, per spec.md §3's "sparse multi-removes use a
// pre-sorted deduplicated index set and execute in a single retention
// pass".
func removeIndices[T any](l []T, idx IndexSet) []T {
	if len(idx) == 0 {
		return copySlice(l)
	}
	out := make([]T, 0, len(l))
	next := 0
	for i, v := range l {
		if next < len(idx) && idx[next] == i {
			next++
			continue
		}
		out = append(out, v)
	}
	return out
}

// IndexSet is a sorted, deduplicated set of vector indices, used by
// VecRemoveMany. NewIndexSet sorts and deduplicates its input, per the
// invariant in spec.md §8; removeIndices relies on that order and does
// not re-sort an IndexSet literal built by hand.
type IndexSet []int

// NewIndexSet builds an IndexSet from arbitrary input, sorting and
// deduplicating it.
func NewIndexSet(indices []int) IndexSet {
	if len(indices) == 0 {
		return IndexSet{}
	}
	cp := append([]int(nil), indices...)
	sort.Ints(cp)
	out := cp[:1]
	for _, v := range cp[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
