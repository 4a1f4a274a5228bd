package broadphase

import (
	"fmt"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// ShapeClass computes the world box of a shape geometry whose body sits at
// the rounded position (x, y).
type ShapeClass interface {
	CacheData(x, y int) BB
}

// Box is a rectangle in body coordinates.
type Box struct {
	Rect BB
}

func (box *Box) CacheData(x, y int) BB {
	return box.Rect.Offset(x, y)
}

// Shape is a collision volume attached to a body. Shape records are pooled
// by their world: after Destroy the same record may come back as a
// different shape.
type Shape struct {
	IndexedObject

	class ShapeClass
	body  *Body
	group uint32

	live       bool
	serial     uint64
	generation uint64

	UserData any
}

func (s *Shape) String() string {
	return fmt.Sprint("Shape ", s.serial)
}

func (s *Shape) Body() *Body {
	return s.body
}

func (s *Shape) Class() ShapeClass {
	return s.class
}

// Group is the collision group id of the shape.
func (s *Shape) Group() uint32 {
	return s.group
}

// Live reports whether the shape has not been destroyed.
func (s *Shape) Live() bool {
	return s.live
}

// Serial is unique among the shapes ever created by a world.
func (s *Shape) Serial() uint64 {
	return s.serial
}

// Generation counts how many times the underlying record has been handed out.
func (s *Shape) Generation() uint64 {
	return s.generation
}

// CacheBB recomputes the box from the geometry and the body position.
func (s *Shape) CacheBB() BB {
	x, y := s.body.p.Round()
	s.BB = s.class.CacheData(x, y)
	return s.BB
}

// Destroy removes the shape from its body and from the world index.
func (s *Shape) Destroy() {
	if !s.live {
		logs.WithTag("shape", s.serial).Warn("destroying a shape twice")
		return
	}
	s.body.world.destroyShape(s)
}

// NewRectShape attaches a rectangle, given in body coordinates, to body.
func (w *World) NewRectShape(body *Body, rect BB, group string) (*Shape, error) {
	if !rect.Valid() {
		return nil, errors.New("rectangle shape has an invalid box").
			WithType(ErrTypeInvalidShape).
			WithTag("rect", rect.String())
	}
	return w.newShape(body, &Box{Rect: rect}, group)
}

// NewCircleShape attaches a circle centered at (x, y) in body coordinates to
// body. The circle is indexed by its bounding square.
func (w *World) NewCircleShape(body *Body, x, y, radius int, group string) (*Shape, error) {
	if radius <= 0 {
		return nil, errors.New("circle shape radius must be positive").
			WithType(ErrTypeInvalidShape).
			WithTag("radius", radius)
	}
	return w.newShape(body, NewCircle(x, y, radius), group)
}

func (w *World) newShape(body *Body, class ShapeClass, group string) (*Shape, error) {
	if w.killed {
		return nil, errors.New("adding a shape to a dying world").
			WithType(ErrTypeDyingWorld).
			WithTag("world", w.name)
	}
	if body == nil || body.world != w || !body.live {
		return nil, errors.New("body does not belong to this world").
			WithType(ErrTypeForeignBody).
			WithTag("world", w.name)
	}
	if group == "" {
		return nil, errors.New("shape has no collision group").
			WithType(ErrTypeInvalidShape)
	}

	groupID, err := w.groups.ID(group)
	if err != nil {
		return nil, errors.New("creating shape failed").Wrap(err)
	}

	s := w.shapePool.get()
	w.nextSerial++
	*s = Shape{
		class:      class,
		body:       body,
		group:      groupID,
		live:       true,
		serial:     w.nextSerial,
		generation: s.generation + 1,
	}
	s.IndexedObject.Init(s)
	s.CacheBB()

	w.tree.Add(&s.IndexedObject)
	body.shapeList = append(body.shapeList, s)

	logs.WithTag("world", w.name).
		WithTag("shape", s.serial).
		WithTag("group", group).
		WithTag("bb", s.BB.String()).
		Debug("shape created")
	return s, nil
}

func (w *World) destroyShape(s *Shape) {
	w.tree.Remove(&s.IndexedObject)
	s.body.removeShape(s)

	logs.WithTag("world", w.name).
		WithTag("shape", s.serial).
		Debug("shape destroyed")

	s.live = false
	s.body = nil
	s.class = nil
	s.UserData = nil
	w.shapePool.put(s)
}
