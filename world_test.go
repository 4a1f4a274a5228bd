package broadphase

import (
	"strings"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestNewWorld(t *testing.T) {
	t.Run("world is created", func(t *testing.T) {
		defer newTestingEnv(t)()

		w, err := NewWorld("arena", DefaultConfig(), NewCallbackRegistry())
		require.NoError(t, err)
		require.NotEmpty(t, w.ID())
		require.Equal(t, "arena", w.Name())
		require.Equal(t, DefaultConfig(), w.Config())
		require.Zero(t, w.StepCount())
		require.False(t, w.Dying())

		static := w.StaticBody()
		require.True(t, static.Live())
		require.Equal(t, BodySpecial, static.Flags())
		require.Empty(t, w.Bodies())
	})

	t.Run("long name returns an error", func(t *testing.T) {
		_, err := NewWorld(strings.Repeat("w", MaxWorldNameLen+1), DefaultConfig(), nil)
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidConfig, errors.Type(err))
	})

	t.Run("invalid config returns an error", func(t *testing.T) {
		conf := DefaultConfig()
		conf.TreeDepth = 0
		_, err := NewWorld("arena", conf, nil)
		require.Error(t, err)
	})
}

func TestNewShape(t *testing.T) {
	t.Run("rect shape is indexed at the body position", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		body, err := w.NewBody(Vector{X: 10.4, Y: -19.6}, 0)
		require.NoError(t, err)

		s, err := w.NewRectShape(body, NewBB(-5, -5, 5, 5), "a")
		require.NoError(t, err)
		require.True(t, s.Live())
		require.Same(t, body, s.Body())
		require.Equal(t, NewBB(5, -25, 15, -15), s.BB)
		require.True(t, s.Stored())
		require.Equal(t, []*Shape{s}, body.Shapes())

		id, ok := w.Groups().Lookup("a")
		require.True(t, ok)
		require.Equal(t, id, s.Group())
	})

	t.Run("circle shape is indexed by its bounding square", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		body, err := w.NewBody(Vector{X: 10, Y: 20}, 0)
		require.NoError(t, err)

		s, err := w.NewCircleShape(body, 2, 3, 5, "a")
		require.NoError(t, err)
		require.Equal(t, NewBB(7, 18, 17, 28), s.BB)

		circle, ok := s.Class().(*Circle)
		require.True(t, ok)
		require.Equal(t, 5, circle.Radius())
	})

	t.Run("serials increase", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		a := addRect(t, w, NewBB(0, 0, 1, 1), "a")
		b := addRect(t, w, NewBB(0, 0, 1, 1), "a")
		require.Less(t, a.Serial(), b.Serial())
	})

	t.Run("invalid shapes return errors", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		other, _ := newTestWorld(t, DefaultConfig())
		body, err := w.NewBody(Vector{}, 0)
		require.NoError(t, err)
		foreign, err := other.NewBody(Vector{}, 0)
		require.NoError(t, err)

		_, err = w.NewRectShape(body, NewBB(0, 0, 0, 10), "a")
		require.Equal(t, ErrTypeInvalidShape, errors.Type(err))

		_, err = w.NewCircleShape(body, 0, 0, 0, "a")
		require.Equal(t, ErrTypeInvalidShape, errors.Type(err))

		_, err = w.NewRectShape(body, NewBB(0, 0, 10, 10), "")
		require.Equal(t, ErrTypeInvalidShape, errors.Type(err))

		_, err = w.NewRectShape(foreign, NewBB(0, 0, 10, 10), "a")
		require.Equal(t, ErrTypeForeignBody, errors.Type(err))

		_, err = w.NewRectShape(nil, NewBB(0, 0, 10, 10), "a")
		require.Equal(t, ErrTypeForeignBody, errors.Type(err))

		_, err = w.NewRectShape(body, NewBB(0, 0, 10, 10), strings.Repeat("g", MaxGroupNameLen+1))
		require.Error(t, err)

		require.Empty(t, body.Shapes())
		require.Zero(t, w.tree.Count())
	})

	t.Run("shape outside the world is fatal", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		body, err := w.NewBody(Vector{X: 1000}, 0)
		require.NoError(t, err)

		requireFatal(t, ErrTypeOutsidePartition, func() {
			w.NewRectShape(body, NewBB(0, 0, 10, 10), "a")
		})
	})
}

func TestShapeDestroy(t *testing.T) {
	t.Run("shape is removed from its body and from the index", func(t *testing.T) {
		defer newTestingEnv(t)()

		w, _ := newTestWorld(t, DefaultConfig())
		s := addRect(t, w, NewBB(0, 0, 10, 10), "a")
		body := s.Body()

		s.Destroy()
		require.False(t, s.Live())
		require.False(t, s.Stored())
		require.Nil(t, s.Body())
		require.Empty(t, body.Shapes())
		require.Zero(t, w.tree.Count())

		shapes, _ := w.ShapesIn(NewBB(-100, -100, 100, 100))
		require.Empty(t, shapes)

		// Destroying twice only logs a warning.
		s.Destroy()
	})

	t.Run("shape records are reused", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		s := addRect(t, w, NewBB(0, 0, 10, 10), "a")
		body := s.Body()
		serial, generation := s.Serial(), s.Generation()
		require.Equal(t, 1, w.PoolStats().InUse)

		s.Destroy()
		require.Equal(t, 0, w.PoolStats().InUse)

		reused, err := w.NewRectShape(body, NewBB(20, 20, 30, 30), "b")
		require.NoError(t, err)
		require.Same(t, s, reused)
		require.Greater(t, reused.Serial(), serial)
		require.Equal(t, generation+1, reused.Generation())
		require.Equal(t, NewBB(20, 20, 30, 30), reused.BB)

		stats := w.PoolStats()
		require.Equal(t, 1, stats.InUse)
		require.Equal(t, 1, stats.Peak)
	})
}

func TestBody(t *testing.T) {
	t.Run("set position reindexes shapes", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		s := addRect(t, w, NewBB(0, 0, 10, 10), "a")

		s.Body().SetPosition(Vector{X: 100.4, Y: 50.6})
		require.Equal(t, Vector{X: 100.4, Y: 50.6}, s.Body().Position())
		require.Equal(t, NewBB(100, 51, 110, 61), s.BB)

		shapes, _ := w.ShapesIn(NewBB(0, 0, 10, 10))
		require.NotContains(t, shapes, s)
		shapes, _ = w.ShapesIn(NewBB(100, 51, 110, 61))
		require.Equal(t, []*Shape{s}, shapes)
	})

	t.Run("static body shapes can move", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		s, err := w.NewRectShape(w.StaticBody(), NewBB(0, 0, 10, 10), "wall")
		require.NoError(t, err)

		w.StaticBody().SetPosition(Vector{X: -20})
		require.Equal(t, NewBB(-20, 0, -10, 10), s.BB)
	})

	t.Run("special flag cannot change", func(t *testing.T) {
		defer newTestingEnv(t)()

		w, _ := newTestWorld(t, DefaultConfig())
		body, err := w.NewBody(Vector{}, 0)
		require.NoError(t, err)

		body.SetFlags(BodySpecial | BodySleep)
		require.Equal(t, BodySleep, body.Flags())

		w.StaticBody().SetFlags(0)
		require.Equal(t, BodySpecial, w.StaticBody().Flags())
	})

	t.Run("destroy removes shapes and the body", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		body, err := w.NewBody(Vector{}, 0)
		require.NoError(t, err)
		a, err := w.NewRectShape(body, NewBB(0, 0, 10, 10), "a")
		require.NoError(t, err)
		b, err := w.NewCircleShape(body, 0, 0, 3, "a")
		require.NoError(t, err)

		body.Destroy()
		require.False(t, body.Live())
		require.False(t, a.Live())
		require.False(t, b.Live())
		require.Empty(t, w.Bodies())
		require.Zero(t, w.tree.Count())

		body.SetPosition(Vector{X: 1})
		require.Equal(t, Vector{}, body.Position())

		_, err = w.NewRectShape(body, NewBB(0, 0, 10, 10), "a")
		require.Equal(t, ErrTypeForeignBody, errors.Type(err))
	})

	t.Run("static body survives destroy", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		s, err := w.NewRectShape(w.StaticBody(), NewBB(0, 0, 10, 10), "wall")
		require.NoError(t, err)

		w.StaticBody().Destroy()
		require.True(t, w.StaticBody().Live())
		require.False(t, s.Live())
		require.Empty(t, w.StaticBody().Shapes())
	})
}

func TestWorldStep(t *testing.T) {
	t.Run("step runs in order", func(t *testing.T) {
		w, callbacks := newTestWorld(t, DefaultConfig())

		var calls []string
		record := func(name string) BodyFunc {
			return func(*World, *Body) error {
				calls = append(calls, name)
				return nil
			}
		}

		id := callbacks.Register(func(*World, *Shape, *Shape, Resolution) error {
			calls = append(calls, "collide")
			return nil
		})
		require.NoError(t, w.SetHandler("a", "wall", id, 0))
		_, err := w.NewRectShape(w.StaticBody(), NewBB(0, 0, 10, 10), "wall")
		require.NoError(t, err)
		w.StaticBody().StepFunc = record("static step")

		body, err := w.NewBody(Vector{}, 0)
		require.NoError(t, err)
		_, err = w.NewRectShape(body, NewBB(5, 5, 15, 15), "a")
		require.NoError(t, err)
		body.StepFunc = record("step")
		body.AfterStepFunc = record("after step")

		require.NoError(t, w.AddTimer(0, func(*World) error {
			calls = append(calls, "world timer")
			return nil
		}))
		require.NoError(t, body.AddTimer(0, func(*World) error {
			calls = append(calls, "body timer")
			return nil
		}))

		require.NoError(t, w.Step())
		require.Equal(t, []string{
			"world timer",
			"body timer",
			"static step",
			"step",
			"collide",
			"after step",
		}, calls)
		require.Equal(t, uint64(1), w.StepCount())
	})

	t.Run("previous position is saved at step start", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		body, err := w.NewBody(Vector{X: 1}, 0)
		require.NoError(t, err)
		body.StepFunc = func(w *World, b *Body) error {
			b.SetPosition(b.Position().Add(Vector{X: 1}))
			return nil
		}

		require.NoError(t, w.Step())
		require.NoError(t, w.Step())
		require.Equal(t, Vector{X: 2}, body.PreviousPosition())
		require.Equal(t, Vector{X: 3}, body.Position())
	})

	t.Run("bodies destroyed during a step are not stepped", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		first, err := w.NewBody(Vector{}, 0)
		require.NoError(t, err)
		second, err := w.NewBody(Vector{}, 0)
		require.NoError(t, err)

		first.StepFunc = func(*World, *Body) error {
			second.Destroy()
			return nil
		}
		stepped := false
		second.StepFunc = func(*World, *Body) error {
			stepped = true
			return nil
		}

		require.NoError(t, w.Step())
		require.False(t, stepped)
		require.Equal(t, []*Body{first}, w.Bodies())
	})

	t.Run("sleeping bodies are stepped when awake", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		body, err := w.NewBody(Vector{}, BodySleep)
		require.NoError(t, err)

		steps := 0
		body.StepFunc = func(*World, *Body) error {
			steps++
			return nil
		}

		require.NoError(t, w.Step())
		require.Zero(t, steps)

		w.Awake = func(*Body) bool { return true }
		require.NoError(t, w.Step())
		require.Equal(t, 1, steps)

		body.SetFlags(0)
		w.Awake = nil
		require.NoError(t, w.Step())
		require.Equal(t, 2, steps)
	})

	t.Run("paused world does not advance", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		body, err := w.NewBody(Vector{}, 0)
		require.NoError(t, err)
		body.StepFunc = func(*World, *Body) error {
			t.Fatal("paused world stepped a body")
			return nil
		}

		w.SetPaused(true)
		require.True(t, w.Paused())
		require.NoError(t, w.Step())
		require.Zero(t, w.StepCount())
	})

	t.Run("physics bodies move", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		body, err := w.NewBody(Vector{}, 0)
		require.NoError(t, err)
		s, err := w.NewRectShape(body, NewBB(0, 0, 1, 1), "a")
		require.NoError(t, err)

		body.EnablePhysics(true)
		body.SetVelocity(Vector{X: 100})
		body.SetGravity(Vector{Y: -100})
		body.StepFunc = func(*World, *Body) error {
			t.Fatal("physics body ran its step function")
			return nil
		}

		require.NoError(t, w.Step())
		require.InDelta(t, 100, body.Velocity().X, 1e-9)
		require.InDelta(t, -1, body.Velocity().Y, 1e-9)
		require.InDelta(t, 1, body.Position().X, 1e-9)
		require.InDelta(t, -0.01, body.Position().Y, 1e-9)

		for i := 0; i < 99; i++ {
			require.NoError(t, w.Step())
		}
		require.InDelta(t, 100, body.Position().X, 1e-6)
		x, y := body.Position().Round()
		require.Equal(t, NewBB(x, y, x+1, y+1), s.BB)
		require.InDelta(t, 1, w.Time(), 1e-9)
	})

	t.Run("step function error is fatal", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		body, err := w.NewBody(Vector{}, 0)
		require.NoError(t, err)
		body.AfterStepFunc = func(*World, *Body) error {
			return errors.New("after step exploded")
		}

		requireFatal(t, ErrTypeCallbackFailed, func() { w.Step() })
	})

	t.Run("too many active bodies is fatal", func(t *testing.T) {
		conf := DefaultConfig()
		conf.MaxActiveBodies = 1
		w, _ := newTestWorld(t, conf)

		_, err := w.NewBody(Vector{}, 0)
		require.NoError(t, err)
		_, err = w.NewBody(Vector{}, BodySleep)
		require.NoError(t, err)
		require.NoError(t, w.Step())

		_, err = w.NewBody(Vector{}, 0)
		require.NoError(t, err)
		requireFatal(t, ErrTypeTooManyBodies, func() { w.Step() })
	})
}

func TestWorldQueries(t *testing.T) {
	t.Run("shapes in a box", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		a := addRect(t, w, NewBB(0, 0, 10, 10), "a")
		b := addRect(t, w, NewBB(5, 5, 15, 15), "b")
		addRect(t, w, NewBB(200, 200, 210, 210), "a")

		shapes, truncated := w.ShapesIn(NewBB(0, 0, 20, 20))
		require.False(t, truncated)
		require.ElementsMatch(t, []*Shape{a, b}, shapes)
	})

	t.Run("shapes in a box are truncated", func(t *testing.T) {
		conf := DefaultConfig()
		conf.MaxLookupShapes = 2
		w, _ := newTestWorld(t, conf)
		for i := 0; i < 3; i++ {
			addRect(t, w, NewBB(0, 0, 10, 10), "a")
		}

		shapes, truncated := w.ShapesIn(NewBB(0, 0, 10, 10))
		require.True(t, truncated)
		require.True(t, w.LastLookupTruncated())
		require.Len(t, shapes, 2)

		_, truncated = w.ShapesIn(NewBB(100, 100, 110, 110))
		require.False(t, truncated)
		require.False(t, w.LastLookupTruncated())
	})

	t.Run("select shape", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		a := addRect(t, w, NewBB(0, 0, 10, 10), "a")
		b := addRect(t, w, NewBB(5, 5, 15, 15), "b")

		s, err := w.SelectShape(Vector{X: 6.2, Y: 5.8}, "")
		require.NoError(t, err)
		require.Same(t, a, s)

		s, err = w.SelectShape(Vector{X: 6, Y: 6}, "b")
		require.NoError(t, err)
		require.Same(t, b, s)

		s, err = w.SelectShape(Vector{X: 12, Y: 12}, "a")
		require.NoError(t, err)
		require.Nil(t, s)

		s, err = w.SelectShape(Vector{X: 6, Y: 6}, "unknown")
		require.NoError(t, err)
		require.Nil(t, s)

		s, err = w.SelectShape(Vector{X: 100, Y: 100}, "")
		require.NoError(t, err)
		require.Nil(t, s)
	})

	t.Run("select shape among too many shapes returns an error", func(t *testing.T) {
		w, _ := newTestWorld(t, DefaultConfig())
		for i := 0; i < selectShapeMax+1; i++ {
			_, err := w.NewRectShape(w.StaticBody(), NewBB(0, 0, 10, 10), "a")
			require.NoError(t, err)
		}

		_, err := w.SelectShape(Vector{X: 5, Y: 5}, "")
		require.Error(t, err)
		require.Equal(t, ErrTypeTooManyShapes, errors.Type(err))
	})

	t.Run("group ids are limited", func(t *testing.T) {
		conf := DefaultConfig()
		conf.MaxGroups = 3
		w, _ := newTestWorld(t, conf)

		a, err := w.GroupID("a")
		require.NoError(t, err)
		b, err := w.GroupID("b")
		require.NoError(t, err)
		require.NotEqual(t, a, b)

		_, err = w.GroupID("c")
		require.Equal(t, ErrTypeTooManyGroups, errors.Type(err))
		require.Error(t, w.SetHandler("a", "c", 1, 0))
		require.NoError(t, w.SetHandler("a", "b", 1, 0))
	})
}

func TestWorldClear(t *testing.T) {
	w, _ := newTestWorld(t, DefaultConfig())
	require.NoError(t, w.SetHandler("a", "b", 1, 0))
	addRect(t, w, NewBB(0, 0, 10, 10), "a")
	wall, err := w.NewRectShape(w.StaticBody(), NewBB(0, 0, 10, 10), "b")
	require.NoError(t, err)
	require.NoError(t, w.AddTimer(1, func(*World) error {
		t.Fatal("cleared timer ran")
		return nil
	}))

	w.Clear()
	require.Empty(t, w.Bodies())
	require.False(t, wall.Live())
	require.Zero(t, w.tree.Count())
	require.Zero(t, w.Groups().Len())
	require.False(t, w.Dying())

	for i := 0; i < 200; i++ {
		require.NoError(t, w.Step())
	}

	s := addRect(t, w, NewBB(0, 0, 10, 10), "c")
	require.True(t, s.Live())
}

func TestWorldDestroy(t *testing.T) {
	defer newTestingEnv(t)()

	w, _ := newTestWorld(t, DefaultConfig())
	body, err := w.NewBody(Vector{}, 0)
	require.NoError(t, err)
	s := addRect(t, w, NewBB(0, 0, 10, 10), "a")

	w.Destroy()
	require.True(t, w.Dying())
	require.False(t, body.Live())
	require.False(t, s.Live())
	require.Equal(t, 1, w.tree.NodeCount())

	err = w.Step()
	require.Equal(t, ErrTypeDyingWorld, errors.Type(err))

	_, err = w.NewBody(Vector{}, 0)
	require.Equal(t, ErrTypeDyingWorld, errors.Type(err))

	_, err = w.NewRectShape(w.StaticBody(), NewBB(0, 0, 10, 10), "a")
	require.Equal(t, ErrTypeDyingWorld, errors.Type(err))

	_, err = w.GroupID("a")
	require.Equal(t, ErrTypeDyingWorld, errors.Type(err))

	err = w.AddTimer(0, func(*World) error { return nil })
	require.Equal(t, ErrTypeDyingWorld, errors.Type(err))

	w.Destroy()
}
