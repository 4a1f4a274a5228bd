package broadphase

import (
	"cmp"
	"slices"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// CollisionRecord is a candidate collision found by the broad phase. The
// groups (and generations) are captured at scan time so the dispatcher can
// tell whether the shapes changed before their turn came.
type CollisionRecord struct {
	Callback CallbackID
	Priority int
	A, B     *Shape
	GroupA   uint32
	GroupB   uint32

	serialA, serialB uint64
	genA, genB       uint64
}

func newCollisionRecord(h Handler, a, b *Shape) CollisionRecord {
	return CollisionRecord{
		Callback: h.Callback,
		Priority: h.Priority,
		A:        a,
		B:        b,
		GroupA:   a.group,
		GroupB:   b.group,
		serialA:  a.serial,
		serialB:  b.serial,
		genA:     a.generation,
		genB:     b.generation,
	}
}

// compareRecords orders by priority, highest first, then by shape serials.
func compareRecords(x, y CollisionRecord) int {
	if c := cmp.Compare(y.Priority, x.Priority); c != 0 {
		return c
	}
	if c := cmp.Compare(x.serialA, y.serialA); c != 0 {
		return c
	}
	return cmp.Compare(x.serialB, y.serialB)
}

// scanShape records a collision for every nearby shape of another body whose
// group pair has a handler, once for each direction that has one.
func (w *World) scanShape(s *Shape) {
	assert(s.group != 0, "scanned shape has no group")

	query := s.BB.Expand(w.conf.CollisionDistance)
	var truncated bool
	w.lookup, truncated = w.tree.Lookup(w.lookup, query, w.conf.MaxLookupShapes)
	w.lastTruncated = truncated
	if truncated {
		fatal(errors.New("too many shapes near a shape").
			WithType(ErrTypeTooManyShapes).
			WithTag("world", w.name).
			WithTag("shape", s.serial).
			WithTag("bb", query.String()).
			WithTag("max", w.conf.MaxLookupShapes))
	}

	for _, obj := range w.lookup {
		other, ok := obj.Owner.(*Shape)
		assert(ok, "shape tree holds an object that is not a shape")
		if other.body == s.body {
			continue
		}

		if h, ok := w.groups.Handler(s.group, other.group); ok {
			w.addRecord(newCollisionRecord(h, s, other))
		}
		if h, ok := w.groups.Handler(other.group, s.group); ok {
			w.addRecord(newCollisionRecord(h, other, s))
		}
	}
}

func (w *World) addRecord(rec CollisionRecord) {
	if len(w.records) >= w.conf.MaxCollisions {
		fatal(errors.New("too many collisions").
			WithType(ErrTypeTooManyCollisions).
			WithTag("world", w.name).
			WithTag("max", w.conf.MaxCollisions))
	}
	w.records = append(w.records, rec)
}

// stale reports whether a record no longer describes the shapes it was
// built from.
func (w *World) stale(rec *CollisionRecord) bool {
	a, b := rec.A, rec.B
	if !a.live || !b.live {
		return true
	}
	if a.body.world != w || b.body.world != w {
		return true
	}
	if a.group != rec.GroupA || b.group != rec.GroupB {
		return true
	}
	return w.conf.StrictIdentity && (a.generation != rec.genA || b.generation != rec.genB)
}

// resolveCollisions scans the shapes of every active body and dispatches
// the resulting records in order.
func (w *World) resolveCollisions() {
	w.records = w.records[:0]
	for _, body := range w.active {
		if body == nil {
			continue
		}
		for _, s := range body.shapeList {
			w.scanShape(s)
		}
	}
	if len(w.records) == 0 {
		return
	}
	instrumentCollisionRecords(w.name, len(w.records))

	slices.SortStableFunc(w.records, compareRecords)

	var prevA, prevB *Shape
	for i := range w.records {
		rec := &w.records[i]
		if rec.A == prevA && rec.B == prevB {
			instrumentCollisionSkip(w.name, skipDuplicate)
			continue
		}
		if w.stale(rec) {
			instrumentCollisionSkip(w.name, skipStale)
			continue
		}
		prevA, prevB = rec.A, rec.B

		res, ok := Resolve(rec.A.BB, rec.B.BB)
		if !ok {
			instrumentCollisionSkip(w.name, skipSeparated)
			continue
		}
		w.dispatch(rec, res)
	}

	clear(w.records)
	w.records = w.records[:0]
}

func (w *World) dispatch(rec *CollisionRecord, res Resolution) {
	if w.callbacks == nil {
		fatal(errors.New("collision handler without callbacks").
			WithType(ErrTypeUnknownCallback).
			WithTag("world", w.name).
			WithTag("callback_id", rec.Callback))
	}

	instrumentCollisionDispatch(w.name)
	if err := w.callbacks.Collide(rec.Callback, w, rec.A, rec.B, res); err != nil {
		fatal(errors.New("collision callback failed").
			WithType(ErrTypeCallbackFailed).
			WithTag("world", w.name).
			WithTag("callback_id", rec.Callback).
			WithTag("shape_a", rec.A.serial).
			WithTag("shape_b", rec.B.serial).
			WithTag("resolution", res.String()).
			Wrap(err))
	}
}
