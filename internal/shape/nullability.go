package shape

import (
	"github.com/roach88/qshape/internal/queryir"
)

// Nullability classifies whether a table's contribution to a result row can
// be absent.
type Nullability string

const (
	// NotNull tables always contribute a row (anchor, inner joins).
	NotNull Nullability = "not-null"

	// Nullable tables may be unmatched; their subtree can collapse to null.
	Nullable Nullability = "nullable"

	// Null tables never contribute a row; their subtree is always null.
	Null Nullability = "null"
)

// NullabilityMap maps table name to its classification.
type NullabilityMap map[string]Nullability

// Get returns the classification for name. Unknown tables report NotNull,
// which never collapses anything.
func (m NullabilityMap) Get(name string) Nullability {
	if n, ok := m[name]; ok {
		return n
	}
	return NotNull
}

// Propagate computes per-table nullability for an anchor and its joins.
//
//	kind   previously recorded tables   joined table
//	inner  unchanged                    not-null
//	left   unchanged                    nullable
//	right  all → nullable               not-null
//	full   all → nullable               nullable
//
// right and full widen every table recorded so far, not only the previous
// one, so a table joined several steps earlier is still affected.
func Propagate(anchor string, edges []queryir.JoinEdge) NullabilityMap {
	m := NullabilityMap{anchor: NotNull}

	for _, edge := range edges {
		name := edge.Table.Name()

		switch edge.Kind {
		case queryir.JoinInner:
			m[name] = NotNull
		case queryir.JoinLeft:
			m[name] = Nullable
		case queryir.JoinRight:
			widenAll(m)
			m[name] = NotNull
		case queryir.JoinFull:
			widenAll(m)
			m[name] = Nullable
		}
	}

	return m
}

// widenAll marks every recorded table nullable. A table already classified
// null stays null.
func widenAll(m NullabilityMap) {
	for name, n := range m {
		if n == NotNull {
			m[name] = Nullable
		}
	}
}
