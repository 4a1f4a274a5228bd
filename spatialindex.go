package broadphase

// SpatialIndexer is implemented by QuadTree.
type SpatialIndexer interface {
	Count() int
	Add(obj *IndexedObject)
	Remove(obj *IndexedObject)
	Update(obj *IndexedObject)
	Lookup(dst []*IndexedObject, bb BB, max int) ([]*IndexedObject, bool)
	Clear()
}

var _ SpatialIndexer = (*QuadTree)(nil)

// shapesOf converts lookup results into shapes. Objects owned by anything
// else are skipped.
func shapesOf(dst []*Shape, objs []*IndexedObject) []*Shape {
	for _, obj := range objs {
		if shape, ok := obj.Owner.(*Shape); ok {
			dst = append(dst, shape)
		}
	}
	return dst
}
