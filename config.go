package broadphase

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Config holds the limits and tunables of a world.
type Config struct {
	// Depth of the shape quad tree. The partitioned space spans
	// [-2^(TreeDepth-1), 2^(TreeDepth-1)] on both axes.
	TreeDepth int

	// Duration of one world step in milliseconds.
	StepMS int

	// Distance a shape box is grown by when looking for collision candidates.
	CollisionDistance int

	MaxGroups       int
	MaxLookupShapes int
	MaxCollisions   int
	MaxActiveBodies int

	// StrictIdentity makes the dispatcher drop collision records whose shape
	// records were destroyed and handed out again since the scan, even when
	// the new shape looks like the old one.
	StrictIdentity bool
}

func DefaultConfig() Config {
	return Config{
		TreeDepth:         10,
		StepMS:            10,
		CollisionDistance: 5,
		MaxGroups:         DefaultMaxGroups,
		MaxLookupShapes:   500,
		MaxCollisions:     2000,
		MaxActiveBodies:   1000,
	}
}

func (c Config) Validate() error {
	switch {
	case c.TreeDepth < 1 || c.TreeDepth > MaxTreeLevels:
		return invalidConfig("tree depth is out of range", "tree_depth", c.TreeDepth)
	case c.StepMS <= 0 || c.StepMS >= 1000:
		return invalidConfig("step duration must be between 1 and 999 milliseconds", "step_ms", c.StepMS)
	case c.CollisionDistance < 0:
		return invalidConfig("collision distance is negative", "collision_distance", c.CollisionDistance)
	case c.MaxGroups < 2:
		return invalidConfig("max groups must allow at least one group", "max_groups", c.MaxGroups)
	case c.MaxLookupShapes <= 0:
		return invalidConfig("max lookup shapes must be positive", "max_lookup_shapes", c.MaxLookupShapes)
	case c.MaxCollisions <= 0:
		return invalidConfig("max collisions must be positive", "max_collisions", c.MaxCollisions)
	case c.MaxActiveBodies <= 0:
		return invalidConfig("max active bodies must be positive", "max_active_bodies", c.MaxActiveBodies)
	}
	return nil
}

func invalidConfig(msg, key string, value int) error {
	return errors.New(msg).
		WithType(ErrTypeInvalidConfig).
		WithTag(key, value)
}
