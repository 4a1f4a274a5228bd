package broadphase

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// CallbackID identifies a collision callback. Zero is never a valid id.
type CallbackID uint32

// Callbacks receives the dispatched collisions of a world. r tells how far
// b has to move along each direction to stop intersecting a.
type Callbacks interface {
	Collide(id CallbackID, w *World, a, b *Shape, r Resolution) error
}

type CollisionFunc func(w *World, a, b *Shape, r Resolution) error

// CallbackRegistry is a Callbacks implementation mapping ids to functions.
type CallbackRegistry struct {
	funcs  map[CallbackID]CollisionFunc
	nextID CallbackID
}

func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{
		funcs:  make(map[CallbackID]CollisionFunc),
		nextID: 1,
	}
}

// Register stores fn and returns the id to pass to SetHandler.
func (r *CallbackRegistry) Register(fn CollisionFunc) CallbackID {
	id := r.nextID
	r.nextID++
	r.funcs[id] = fn
	return id
}

// Unregister forgets a callback. Handlers still referring to it fail when
// dispatched.
func (r *CallbackRegistry) Unregister(id CallbackID) {
	delete(r.funcs, id)
}

func (r *CallbackRegistry) Collide(id CallbackID, w *World, a, b *Shape, res Resolution) error {
	fn, ok := r.funcs[id]
	if !ok {
		return errors.New("unknown collision callback").
			WithType(ErrTypeUnknownCallback).
			WithTag("callback_id", id)
	}
	return fn(w, a, b, res)
}
