package broadphase

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// MaxTreeLevels is the deepest quad tree that can be created.
const MaxTreeLevels = 20

type point struct {
	x, y int
}

// node is a square cell of the quad tree. Kids are indexed
//
//	0 | 3
//	-----
//	1 | 2
type node struct {
	bb      BB
	size    int
	level   int
	entries []*IndexedObject
	kids    [4]*node
	parent  *node
}

func (n *node) empty() bool {
	return len(n.entries) == 0 && n.kids == [4]*node{}
}

func (n *node) removeEntry(obj *IndexedObject) bool {
	for i, entry := range n.entries {
		if entry == obj {
			last := len(n.entries) - 1
			n.entries[i] = n.entries[last]
			n.entries[last] = nil
			n.entries = n.entries[:last]
			return true
		}
	}
	return false
}

// IndexedObject is the handle a QuadTree stores. It is embedded in whatever
// owns it and must be initialized with Init before being added.
type IndexedObject struct {
	BB    BB
	Owner any

	stored  bool
	visited bool
	level   int
	nodes   [4]*node
}

// Init resets the handle to a fresh, unlinked state.
func (obj *IndexedObject) Init(owner any) {
	if owner == nil {
		fatal(errors.New("indexed object without owner").WithType(ErrTypeIndexCorrupted))
	}
	if obj.stored {
		fatal(errors.New("initializing an indexed object that is still stored").
			WithType(ErrTypeIndexCorrupted).
			WithTag("bb", obj.BB.String()))
	}
	*obj = IndexedObject{Owner: owner, level: -1}
}

// Stored reports whether the object is currently part of a tree.
func (obj *IndexedObject) Stored() bool {
	return obj.stored
}

// Level is the tree level the object lives at, or -1 when it is not stored.
func (obj *IndexedObject) Level() int {
	return obj.level
}

func (obj *IndexedObject) slots() int {
	count := 0
	for _, n := range obj.nodes {
		if n != nil {
			count++
		}
	}
	return count
}

// QuadTree partitions a square region of the plane into nodes. An object is
// stored at the level whose node size is the smallest power of two covering
// its box, in each of the (up to four) nodes its box touches.
type QuadTree struct {
	root      *node
	nodes     slab[node]
	count     int
	truncated bool

	// Disables walking fully covered nodes without box checks.
	noPrune bool
}

// NewQuadTree creates a tree covering [-2^(levels-1), 2^(levels-1)] on both
// axes.
func NewQuadTree(levels int) *QuadTree {
	if levels < 1 || levels > MaxTreeLevels {
		fatal(errors.Newf("quad tree depth %d is out of range", levels).
			WithType(ErrTypeInvalidConfig).
			WithTag("max", MaxTreeLevels))
	}

	tree := &QuadTree{}
	half := 1 << (levels - 1)
	tree.root = tree.newNode(nil, NewBB(-half, -half, half, half), levels)
	return tree
}

func (tree *QuadTree) newNode(parent *node, bb BB, level int) *node {
	n := tree.nodes.get()
	n.bb = bb
	n.size = 1 << level
	n.level = level
	n.parent = parent
	return n
}

func (tree *QuadTree) freeNode(n *node) {
	assert(n.empty(), "freeing a node that is not empty")
	*n = node{entries: n.entries[:0]}
	tree.nodes.put(n)
}

// Bounds is the partitioned region.
func (tree *QuadTree) Bounds() BB {
	return tree.root.bb
}

// Count is the number of stored objects.
func (tree *QuadTree) Count() int {
	return tree.count
}

// NodeCount is the number of live nodes, root included.
func (tree *QuadTree) NodeCount() int {
	return tree.nodes.Stats().InUse
}

func (tree *QuadTree) PoolStats() PoolStats {
	return tree.nodes.Stats()
}

// Truncated reports whether the last lookup hit its result limit.
func (tree *QuadTree) Truncated() bool {
	return tree.truncated
}

func floorDiv(v, size int) int {
	if v < 0 {
		return -((-v - 1) / size) - 1
	}
	return v / size
}

// placement returns the level a box belongs to together with the bottom
// left corners of the nodes it overlaps at that level.
func placement(bb BB) (level int, pos [4]point, n int) {
	size := 1
	for extent := max(bb.Width(), bb.Height()); size < extent; size <<= 1 {
		level++
	}

	l, r := floorDiv(bb.L, size), floorDiv(bb.R-1, size)
	b, t := floorDiv(bb.B, size), floorDiv(bb.T-1, size)
	for y := b; y <= t; y++ {
		for x := l; x <= r; x++ {
			pos[n] = point{x * size, y * size}
			n++
		}
	}
	return level, pos, n
}

func (tree *QuadTree) checkPlacement(obj *IndexedObject) {
	if !obj.BB.Valid() {
		fatal(errors.New("indexed object has an invalid bounding box").
			WithType(ErrTypeInvalidShape).
			WithTag("bb", obj.BB.String()))
	}
	if !tree.root.bb.Contains(obj.BB) {
		fatal(errors.New("object is outside partitioned space, maybe the tree depth should be increased").
			WithType(ErrTypeOutsidePartition).
			WithTag("bb", obj.BB.String()).
			WithTag("partition", tree.root.bb.String()))
	}
}

// Add stores an object that is not yet part of any tree.
func (tree *QuadTree) Add(obj *IndexedObject) {
	if obj.Owner == nil || obj.stored || obj.visited || obj.level != -1 || obj.slots() != 0 {
		fatal(errors.New("adding an object that is not fresh").
			WithType(ErrTypeIndexCorrupted).
			WithTag("bb", obj.BB.String()))
	}
	tree.checkPlacement(obj)

	level, pos, n := placement(obj.BB)
	obj.level = level
	tree.insert(tree.root, obj, pos[:n])

	assert(obj.slots() > 0, "object was not added to any node")
	obj.stored = true
	tree.count++
}

func (tree *QuadTree) insert(n *node, obj *IndexedObject, pos []point) {
	if n.level == obj.level {
		if len(pos) != 1 || pos[0] != (point{n.bb.L, n.bb.B}) {
			fatal(errors.New("node positions do not match the target node").
				WithType(ErrTypeIndexCorrupted).
				WithTag("node", n.bb.String()).
				WithTag("bb", obj.BB.String()))
		}

		n.entries = append(n.entries, obj)
		for i := range obj.nodes {
			if obj.nodes[i] == nil {
				obj.nodes[i] = n
				return
			}
		}
		fatal(errors.New("no free node slots").
			WithType(ErrTypeIndexCorrupted).
			WithTag("bb", obj.BB.String()))
	}

	half := n.size >> 1
	midX, midY := n.bb.L+half, n.bb.B+half

	var split [4][4]point
	var counts [4]int
	for _, p := range pos {
		q := quadrant(p, midX, midY)
		split[q][counts[q]] = p
		counts[q]++
	}

	for q := range n.kids {
		if counts[q] == 0 {
			continue
		}
		child := n.kids[q]
		if child == nil {
			child = tree.newNode(n, childBB(n.bb, half, q), n.level-1)
			n.kids[q] = child
		}
		tree.insert(child, obj, split[q][:counts[q]])
	}
}

func quadrant(p point, midX, midY int) int {
	switch {
	case p.x < midX && p.y >= midY:
		return 0
	case p.x < midX:
		return 1
	case p.y < midY:
		return 2
	default:
		return 3
	}
}

func childBB(bb BB, half, q int) BB {
	switch q {
	case 0:
		return BB{bb.L, bb.B + half, bb.R - half, bb.T}
	case 1:
		return BB{bb.L, bb.B, bb.R - half, bb.T - half}
	case 2:
		return BB{bb.L + half, bb.B, bb.R, bb.T - half}
	default:
		return BB{bb.L + half, bb.B + half, bb.R, bb.T}
	}
}

// Remove unlinks a stored object from every node it is in.
func (tree *QuadTree) Remove(obj *IndexedObject) {
	if !obj.stored || obj.visited || obj.slots() == 0 {
		fatal(errors.New("removing an object that is not stored").
			WithType(ErrTypeIndexCorrupted).
			WithTag("bb", obj.BB.String()))
	}

	tree.unlink(obj, &obj.nodes)
	obj.stored = false
	obj.level = -1
	tree.count--
}

func (tree *QuadTree) unlink(obj *IndexedObject, nodes *[4]*node) {
	for i, n := range nodes {
		if n == nil {
			continue
		}
		nodes[i] = nil

		if !n.removeEntry(obj) {
			fatal(errors.New("object is missing from its node").
				WithType(ErrTypeIndexCorrupted).
				WithTag("node", n.bb.String()).
				WithTag("bb", obj.BB.String()))
		}
		tree.pruneIfEmpty(n)
	}
}

func (tree *QuadTree) pruneIfEmpty(n *node) {
	for n.parent != nil && n.empty() {
		parent := n.parent
		found := false
		for i, kid := range parent.kids {
			if kid == n {
				parent.kids[i] = nil
				found = true
				break
			}
		}
		assert(found, "node is missing from its parent")

		tree.freeNode(n)
		n = parent
	}
}

// Update moves a stored object after its box changed. Nodes the object
// stays in are left untouched.
func (tree *QuadTree) Update(obj *IndexedObject) {
	if !obj.stored || obj.visited || obj.slots() == 0 {
		fatal(errors.New("updating an object that is not stored").
			WithType(ErrTypeIndexCorrupted).
			WithTag("bb", obj.BB.String()))
	}
	tree.checkPlacement(obj)

	level, pos, n := placement(obj.BB)
	stale := obj.nodes
	obj.nodes = [4]*node{}

	if level != obj.level {
		obj.level = level
		tree.insert(tree.root, obj, pos[:n])
		tree.unlink(obj, &stale)
		assert(obj.slots() > 0, "object fell out of the tree")
		return
	}

	var fresh [4]point
	var common, numFresh int
	for _, p := range pos[:n] {
		kept := false
		for i, old := range stale {
			if old != nil && old.bb.L == p.x && old.bb.B == p.y {
				obj.nodes[common] = old
				common++
				stale[i] = nil
				kept = true
				break
			}
		}
		if !kept {
			fresh[numFresh] = p
			numFresh++
		}
	}

	if numFresh > 0 {
		tree.insert(tree.root, obj, fresh[:numFresh])
	}
	tree.unlink(obj, &stale)

	if slots := obj.slots(); slots == 0 || slots != common+numFresh {
		fatal(errors.New("object node count is inconsistent after update").
			WithType(ErrTypeIndexCorrupted).
			WithTag("bb", obj.BB.String()).
			WithTag("slots", slots).
			WithTag("expected", common+numFresh))
	}
}

// Lookup appends to dst[:0] every object stored in a node that overlaps bb.
// Each object is returned once. The boolean is true when more than max
// objects were found; the result then holds the first max of them.
func (tree *QuadTree) Lookup(dst []*IndexedObject, bb BB, max int) ([]*IndexedObject, bool) {
	dst = dst[:0]
	tree.truncated = false

	if !bb.Valid() {
		fatal(errors.New("lookup with an invalid bounding box").
			WithType(ErrTypeInvalidShape).
			WithTag("bb", bb.String()))
	}
	if !bb.Overlaps(tree.root.bb) {
		return dst, false
	}

	dst, tree.truncated = tree.collect(tree.root, &bb, dst, max)
	for _, obj := range dst {
		obj.visited = false
	}
	return dst, tree.truncated
}

// collect walks n and its kids. A nil bb means n is fully covered by the
// query, so its whole subtree is collected.
func (tree *QuadTree) collect(n *node, bb *BB, dst []*IndexedObject, max int) ([]*IndexedObject, bool) {
	for _, obj := range n.entries {
		if obj.visited {
			continue
		}
		if len(dst) >= max {
			return dst, true
		}
		dst = append(dst, obj)
		obj.visited = true
	}

	for _, child := range n.kids {
		if child == nil {
			continue
		}

		query := bb
		if bb != nil {
			if !bb.Overlaps(child.bb) {
				continue
			}
			if !tree.noPrune && bb.Contains(child.bb) {
				query = nil
			}
		}

		var truncated bool
		if dst, truncated = tree.collect(child, query, dst, max); truncated {
			return dst, true
		}
	}
	return dst, false
}

// Clear unlinks every object and frees every node but the root.
func (tree *QuadTree) Clear() {
	tree.clearNode(tree.root)
	tree.count = 0
	tree.truncated = false
}

func (tree *QuadTree) clearNode(n *node) {
	for _, obj := range n.entries {
		linked := false
		for i, slot := range obj.nodes {
			if slot == n {
				obj.nodes[i] = nil
			} else if slot != nil {
				linked = true
			}
		}
		if !linked {
			obj.stored = false
			obj.level = -1
		}
	}
	clear(n.entries)
	n.entries = n.entries[:0]

	for i, child := range n.kids {
		if child != nil {
			tree.clearNode(child)
			n.kids[i] = nil
			tree.freeNode(child)
		}
	}
}
