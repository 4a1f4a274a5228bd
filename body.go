package broadphase

import (
	"fmt"

	"github.com/aukilabs/go-tooling/pkg/logs"
)

type BodyFlag uint

const (
	// BodySpecial bodies are left out of the body list. They are never
	// stepped nor scanned for collisions, but their shapes can still be hit.
	BodySpecial BodyFlag = 1 << iota

	// BodySleep bodies are only stepped when the world Awake func says so.
	BodySleep
)

// BodyFunc is a per-step function of a body.
type BodyFunc func(w *World, body *Body) error

type Body struct {
	id    uint64
	world *World
	flags BodyFlag
	live  bool

	// position and position at the start of the current step
	p, prev Vector

	// simple motion integrated before the step function
	physics bool
	v, g    Vector

	shapeList []*Shape
	timers    [BodyTimersMax]Timer

	StepFunc      BodyFunc
	AfterStepFunc BodyFunc

	UserData interface{}
}

func (b *Body) String() string {
	return fmt.Sprint("Body ", b.id)
}

func (b *Body) World() *World {
	return b.world
}

func (b *Body) Flags() BodyFlag {
	return b.flags
}

func (b *Body) SetFlags(flags BodyFlag) {
	if b.flags&BodySpecial != flags&BodySpecial {
		logs.WithTag("body", b.id).Warn("the special flag of a body cannot change")
		flags = flags&^BodySpecial | b.flags&BodySpecial
	}
	b.flags = flags
}

func (b *Body) Live() bool {
	return b.live
}

func (b *Body) Position() Vector {
	return b.p
}

// PreviousPosition is where the body was when the current step started.
func (b *Body) PreviousPosition() Vector {
	return b.prev
}

// SetPosition moves the body and reindexes its shapes.
func (b *Body) SetPosition(position Vector) {
	if !b.live || position.Equal(b.p) {
		return
	}
	b.p = position
	b.updateTree()
}

func (b *Body) updateTree() {
	for _, s := range b.shapeList {
		s.CacheBB()
		b.world.tree.Update(&s.IndexedObject)
	}
}

func (b *Body) Velocity() Vector {
	return b.v
}

func (b *Body) SetVelocity(v Vector) {
	b.v = v
}

func (b *Body) Gravity() Vector {
	return b.g
}

func (b *Body) SetGravity(g Vector) {
	b.g = g
}

// EnablePhysics makes the world integrate velocity and gravity in place of
// calling the step function.
func (b *Body) EnablePhysics(enabled bool) {
	b.physics = enabled
}

func (b *Body) Shapes() []*Shape {
	return b.shapeList
}

func (b *Body) EachShape(f func(*Shape)) {
	for i := 0; i < len(b.shapeList); i++ {
		f(b.shapeList[i])
	}
}

func (b *Body) removeShape(shape *Shape) {
	for i, s := range b.shapeList {
		if s == shape {
			// leak-free delete from slice
			last := len(b.shapeList) - 1
			b.shapeList[i] = b.shapeList[last]
			b.shapeList[last] = nil
			b.shapeList = b.shapeList[:last]
			break
		}
	}
}

// AddTimer schedules fn to run once world time reaches when seconds.
func (b *Body) AddTimer(when float64, fn TimerFunc) error {
	return addTimer(b.timers[:], when, fn)
}

func (b *Body) step(w *World) {
	if b.physics {
		b.v = b.v.Add(b.g.Mult(w.stepSec))
		b.SetPosition(b.p.Add(b.v.Mult(w.stepSec)))
		return
	}
	if b.StepFunc != nil {
		w.runBodyFunc(b, b.StepFunc, "step")
	}
}

func (b *Body) afterStep(w *World) {
	if b.AfterStepFunc != nil {
		w.runBodyFunc(b, b.AfterStepFunc, "after-step")
	}
}

// Destroy destroys the shapes of the body and removes it from its world.
// The static body of a world only loses its shapes.
func (b *Body) Destroy() {
	if !b.live {
		return
	}
	for len(b.shapeList) > 0 {
		b.shapeList[len(b.shapeList)-1].Destroy()
	}
	if b == b.world.staticBody {
		return
	}

	b.world.removeBody(b)
	b.live = false
	b.timers = [BodyTimersMax]Timer{}
	b.StepFunc = nil
	b.AfterStepFunc = nil

	logs.WithTag("world", b.world.name).
		WithTag("body", b.id).
		Debug("body destroyed")
}
