package broadphase

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// MaxGroupNameLen is the longest accepted group name, in bytes.
	MaxGroupNameLen = 49

	// DefaultMaxGroups bounds group ids per world. Ids must stay below it.
	DefaultMaxGroups = 200
)

// Handler is the callback registered for an ordered pair of groups.
// A zero Callback means no handler.
type Handler struct {
	Callback CallbackID
	Priority int
}

// GroupDirectory maps collision group names to ids and holds the handler
// registered for every ordered pair of ids.
type GroupDirectory struct {
	max      int
	nextID   uint32
	ids      map[string]uint32
	handlers []Handler
}

func NewGroupDirectory(max int) *GroupDirectory {
	if max <= 1 {
		max = DefaultMaxGroups
	}
	return &GroupDirectory{
		max:      max,
		nextID:   1,
		ids:      make(map[string]uint32),
		handlers: make([]Handler, max*max),
	}
}

// ID returns the id of the named group, creating the group when it does not
// exist yet.
func (d *GroupDirectory) ID(name string) (uint32, error) {
	if id, ok := d.ids[name]; ok {
		return id, nil
	}

	if len(name) > MaxGroupNameLen {
		return 0, errors.New("group name is too long").
			WithType(ErrTypeGroupNameTooLong).
			WithTag("name", name).
			WithTag("max", MaxGroupNameLen)
	}
	if int(d.nextID) >= d.max {
		return 0, errors.New("too many shape groups").
			WithType(ErrTypeTooManyGroups).
			WithTag("name", name).
			WithTag("max", d.max)
	}

	id := d.nextID
	d.nextID++
	d.ids[name] = id
	return id, nil
}

// Lookup returns the id of an existing group.
func (d *GroupDirectory) Lookup(name string) (uint32, bool) {
	id, ok := d.ids[name]
	return id, ok
}

func (d *GroupDirectory) Name(id uint32) (string, bool) {
	for name, groupID := range d.ids {
		if groupID == id {
			return name, true
		}
	}
	return "", false
}

// Len is the number of groups.
func (d *GroupDirectory) Len() int {
	return len(d.ids)
}

func (d *GroupDirectory) index(a, b uint32) int {
	if a == 0 || b == 0 || int(a) >= d.max || int(b) >= d.max {
		fatal(errors.New("group id out of range").
			WithType(ErrTypeIndexCorrupted).
			WithTag("group_a", a).
			WithTag("group_b", b).
			WithTag("max", d.max))
	}
	return int(a)*d.max + int(b)
}

// SetHandler registers cb for collisions of a (first) with b (second). A
// zero cb removes the handler.
func (d *GroupDirectory) SetHandler(a, b uint32, cb CallbackID, priority int) {
	if cb == 0 {
		priority = 0
	}
	d.handlers[d.index(a, b)] = Handler{Callback: cb, Priority: priority}
}

// Handler returns the handler registered for the ordered pair (a, b).
func (d *GroupDirectory) Handler(a, b uint32) (Handler, bool) {
	if a == 0 || b == 0 {
		return Handler{}, false
	}
	h := d.handlers[d.index(a, b)]
	return h, h.Callback != 0
}

// Reset forgets every group and handler.
func (d *GroupDirectory) Reset() {
	clear(d.ids)
	clear(d.handlers)
	d.nextID = 1
}
