package memdb

import (
	"fmt"
	"slices"

	"fwhelper/internal/program"
)

func sameEdge(a, b program.Reference) bool {
	return a.From == b.From && a.To == b.To && a.Type == b.Type
}

func sortRefs(refs []program.Reference) {
	slices.SortStableFunc(refs, func(x, y program.Reference) int {
		switch {
		case x.From.Less(y.From):
			return -1
		case y.From.Less(x.From):
			return 1
		}
		return int(x.Type) - int(y.Type)
	})
}

// ReferencesTo returns every reference to a, ordered by source address.
func (db *DB) ReferencesTo(a program.Address) []program.Reference {
	refs := slices.Clone(db.refsTo[a])
	sortRefs(refs)
	return refs
}

// ReferencesFrom returns every reference from a.
func (db *DB) ReferencesFrom(a program.Address) []program.Reference {
	return slices.Clone(db.refsFrom[a])
}

// AddMemoryReference records a reference. Adding an edge that already
// exists (same from, to and type) keeps a single copy and upgrades its
// source to the newer one.
func (db *DB) AddMemoryReference(from, to program.Address, t program.RefType, src program.SourceType, opIndex int) (program.Reference, error) {
	if !db.inBounds(from, 1) {
		return program.Reference{}, fmt.Errorf("reference from %s: %w", from, program.ErrOutOfBounds)
	}
	if !db.inBounds(to, 1) {
		return program.Reference{}, fmt.Errorf("reference to %s: %w", to, program.ErrOutOfBounds)
	}
	ref := program.Reference{From: from, To: to, Type: t, Source: src, OperandIndex: opIndex}

	if i := slices.IndexFunc(db.refsFrom[from], func(r program.Reference) bool { return sameEdge(r, ref) }); i >= 0 {
		db.refsFrom[from][i] = ref
		j := slices.IndexFunc(db.refsTo[to], func(r program.Reference) bool { return sameEdge(r, ref) })
		db.refsTo[to][j] = ref
		return ref, nil
	}
	db.refsFrom[from] = append(db.refsFrom[from], ref)
	db.refsTo[to] = append(db.refsTo[to], ref)
	return ref, nil
}

// RemoveAllReferencesFrom deletes every reference originating at a.
func (db *DB) RemoveAllReferencesFrom(a program.Address) {
	db.removeRefsFrom(a, func(program.Reference) bool { return true })
}

func (db *DB) removeRefsFrom(a program.Address, match func(program.Reference) bool) {
	var keep []program.Reference
	for _, r := range db.refsFrom[a] {
		if !match(r) {
			keep = append(keep, r)
			continue
		}
		db.refsTo[r.To] = slices.DeleteFunc(db.refsTo[r.To], func(x program.Reference) bool {
			return sameEdge(x, r)
		})
		if len(db.refsTo[r.To]) == 0 {
			delete(db.refsTo, r.To)
		}
	}
	if len(keep) == 0 {
		delete(db.refsFrom, a)
		return
	}
	db.refsFrom[a] = keep
}

// RefCount returns the total number of references in the index.
func (db *DB) RefCount() int {
	n := 0
	for _, refs := range db.refsFrom {
		n += len(refs)
	}
	return n
}
