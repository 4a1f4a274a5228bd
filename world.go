package broadphase

import (
	"slices"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
)

// MaxWorldNameLen is the longest accepted world name, in bytes.
const MaxWorldNameLen = 49

// AwakeFunc decides whether a sleeping body takes part in the next step.
type AwakeFunc func(body *Body) bool

// World owns bodies and their shapes, indexes the shapes in a quad tree and
// dispatches the collisions between shape groups that have a handler.
type World struct {
	id      string
	name    string
	conf    Config
	stepSec float64
	step    uint64
	paused  bool
	killed  bool

	staticBody *Body
	bodies     []*Body
	nextBodyID uint64

	// bodies taking part in the running step; destroyed ones are nil
	active []*Body

	tree       *QuadTree
	groups     *GroupDirectory
	callbacks  Callbacks
	shapePool  slab[Shape]
	nextSerial uint64
	timers     [WorldTimersMax]Timer

	records       []CollisionRecord
	lookup        []*IndexedObject
	lastTruncated bool

	Awake    AwakeFunc
	UserData interface{}
}

// NewWorld creates a world whose collisions are dispatched to callbacks.
func NewWorld(name string, conf Config, callbacks Callbacks) (*World, error) {
	if len(name) > MaxWorldNameLen {
		return nil, errors.New("world name is too long").
			WithType(ErrTypeInvalidConfig).
			WithTag("name", name).
			WithTag("max", MaxWorldNameLen)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.New("creating world failed").
			WithTag("name", name).
			Wrap(err)
	}

	w := &World{
		id:        uuid.NewString(),
		name:      name,
		conf:      conf,
		stepSec:   float64(conf.StepMS) / 1000,
		tree:      NewQuadTree(conf.TreeDepth),
		groups:    NewGroupDirectory(conf.MaxGroups),
		callbacks: callbacks,
		records:   make([]CollisionRecord, 0, conf.MaxCollisions),
		lookup:    make([]*IndexedObject, 0, conf.MaxLookupShapes),
	}
	w.staticBody = w.newBody(Vector{}, BodySpecial)

	logs.WithTag("world_id", w.id).
		WithTag("world", name).
		WithTag("tree_depth", conf.TreeDepth).
		WithTag("step_ms", conf.StepMS).
		Info("world created")
	return w, nil
}

func (w *World) ID() string {
	return w.id
}

func (w *World) Name() string {
	return w.name
}

func (w *World) Config() Config {
	return w.conf
}

// StepCount is the number of completed steps.
func (w *World) StepCount() uint64 {
	return w.step
}

// Time is the world time in seconds.
func (w *World) Time() float64 {
	return float64(w.step) * w.stepSec
}

func (w *World) Paused() bool {
	return w.paused
}

func (w *World) SetPaused(paused bool) {
	w.paused = paused
}

// Dying reports whether the world has been destroyed.
func (w *World) Dying() bool {
	return w.killed
}

func (w *World) StaticBody() *Body {
	return w.staticBody
}

func (w *World) Bodies() []*Body {
	return w.bodies
}

func (w *World) Groups() *GroupDirectory {
	return w.groups
}

func (w *World) SetCallbacks(callbacks Callbacks) {
	w.callbacks = callbacks
}

// Bounds is the region shapes can be placed in.
func (w *World) Bounds() BB {
	return w.tree.Bounds()
}

// PoolStats describes the shape record pool.
func (w *World) PoolStats() PoolStats {
	return w.shapePool.Stats()
}

// LastLookupTruncated reports whether the last shape lookup hit its limit.
func (w *World) LastLookupTruncated() bool {
	return w.lastTruncated
}

func (w *World) NewBody(position Vector, flags BodyFlag) (*Body, error) {
	if w.killed {
		return nil, errors.New("adding a body to a dying world").
			WithType(ErrTypeDyingWorld).
			WithTag("world", w.name)
	}
	return w.newBody(position, flags), nil
}

func (w *World) newBody(position Vector, flags BodyFlag) *Body {
	w.nextBodyID++
	body := &Body{
		id:    w.nextBodyID,
		world: w,
		flags: flags,
		live:  true,
		p:     position,
		prev:  position,
	}
	if flags&BodySpecial == 0 {
		w.bodies = append(w.bodies, body)
	}
	return body
}

func (w *World) removeBody(body *Body) {
	if body.flags&BodySpecial != 0 {
		return
	}
	if i := slices.Index(w.bodies, body); i >= 0 {
		w.bodies = slices.Delete(w.bodies, i, i+1)
	}
	for i, active := range w.active {
		if active == body {
			w.active[i] = nil
		}
	}
}

// GroupID returns the id of the named collision group, creating it when
// needed.
func (w *World) GroupID(name string) (uint32, error) {
	if w.killed {
		return 0, errors.New("registering a group in a dying world").
			WithType(ErrTypeDyingWorld).
			WithTag("world", w.name)
	}
	return w.groups.ID(name)
}

// SetHandler makes the world dispatch collisions of shapes in groupA with
// shapes in groupB to the callback id. Higher priorities are dispatched
// first. A zero id removes the handler.
func (w *World) SetHandler(groupA, groupB string, id CallbackID, priority int) error {
	a, err := w.GroupID(groupA)
	if err != nil {
		return errors.New("setting collision handler failed").Wrap(err)
	}
	b, err := w.GroupID(groupB)
	if err != nil {
		return errors.New("setting collision handler failed").Wrap(err)
	}
	w.groups.SetHandler(a, b, id, priority)
	return nil
}

// AddTimer schedules fn to run once world time reaches when seconds.
func (w *World) AddTimer(when float64, fn TimerFunc) error {
	if w.killed {
		return errors.New("adding a timer to a dying world").
			WithType(ErrTypeDyingWorld).
			WithTag("world", w.name)
	}
	return addTimer(w.timers[:], when, fn)
}

// Step runs timers, step functions, collision handlers and after-step
// functions of every active body, then advances the step counter.
func (w *World) Step() error {
	if w.killed {
		return errors.New("stepping a dying world").
			WithType(ErrTypeDyingWorld).
			WithTag("world", w.name)
	}
	if w.paused {
		return nil
	}
	start := time.Now()

	w.snapshot()
	w.staticBody.prev = w.staticBody.p
	for _, body := range w.active {
		body.prev = body.p
	}

	now := w.Time()
	runTimers(w, w.timers[:], now)
	w.eachActive(func(body *Body, w *World) {
		runTimers(w, body.timers[:], now)
	})

	w.eachActive((*Body).step)
	w.resolveCollisions()
	w.eachActive((*Body).afterStep)

	clear(w.active)
	w.active = w.active[:0]
	w.step++

	instrumentStep(w.name, start, w.tree.NodeCount())
	return nil
}

func (w *World) snapshot() {
	w.active = w.active[:0]
	for _, body := range w.bodies {
		if body.flags&BodySleep != 0 && (w.Awake == nil || !w.Awake(body)) {
			continue
		}
		if len(w.active) >= w.conf.MaxActiveBodies {
			fatal(errors.New("too many active bodies").
				WithType(ErrTypeTooManyBodies).
				WithTag("world", w.name).
				WithTag("max", w.conf.MaxActiveBodies))
		}
		w.active = append(w.active, body)
	}
}

// eachActive calls f on the static body and on every active body that is
// still alive.
func (w *World) eachActive(f func(body *Body, w *World)) {
	if !w.killed {
		f(w.staticBody, w)
	}
	for _, body := range w.active {
		if body != nil {
			f(body, w)
		}
	}
}

func (w *World) runBodyFunc(body *Body, fn BodyFunc, kind string) {
	if err := fn(w, body); err != nil {
		fatal(errors.Newf("body %s function failed", kind).
			WithType(ErrTypeCallbackFailed).
			WithTag("world", w.name).
			WithTag("body", body.id).
			WithTag("step", w.step).
			Wrap(err))
	}
}

// ShapesIn returns the shapes stored in tree nodes overlapping bb. The
// boolean is true when the result was cut at Config.MaxLookupShapes.
func (w *World) ShapesIn(bb BB) ([]*Shape, bool) {
	var truncated bool
	w.lookup, truncated = w.tree.Lookup(w.lookup, bb, w.conf.MaxLookupShapes)
	w.lastTruncated = truncated
	return shapesOf(nil, w.lookup), truncated
}

const selectShapeMax = 100

// SelectShape returns the oldest shape overlapping the 2x2 box centered at
// p, optionally restricted to a group. It returns nil when there is none.
func (w *World) SelectShape(p Vector, group string) (*Shape, error) {
	var groupID uint32
	if group != "" {
		id, ok := w.groups.Lookup(group)
		if !ok {
			return nil, nil
		}
		groupID = id
	}

	x, y := p.Round()
	bb := NewBB(x-1, y-1, x+1, y+1)

	var truncated bool
	w.lookup, truncated = w.tree.Lookup(w.lookup, bb, selectShapeMax)
	w.lastTruncated = truncated
	if truncated {
		return nil, errors.New("too many shapes around the selected point").
			WithType(ErrTypeTooManyShapes).
			WithTag("point", p.String()).
			WithTag("max", selectShapeMax)
	}

	var selected *Shape
	for _, s := range shapesOf(nil, w.lookup) {
		if groupID != 0 && s.group != groupID {
			continue
		}
		if !bb.Overlaps(s.BB) {
			continue
		}
		if selected == nil || s.serial < selected.serial {
			selected = s
		}
	}
	return selected, nil
}

// Clear destroys every body, the shapes of the static body, the world
// timers, the groups and the collision handlers.
func (w *World) Clear() {
	for len(w.bodies) > 0 {
		w.bodies[0].Destroy()
	}
	w.staticBody.Destroy()
	w.timers = [WorldTimersMax]Timer{}
	w.groups.Reset()
}

// Destroy clears the world and marks it as dying. A dying world cannot be
// stepped and does not accept new bodies, shapes, groups or timers.
func (w *World) Destroy() {
	if w.killed {
		return
	}
	logs.WithTag("world_id", w.id).
		WithTag("world", w.name).
		Info("world destroyed")

	w.killed = true
	w.Clear()
	w.tree.Clear()
}
