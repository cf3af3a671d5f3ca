package gosfs

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MountOption configures a Mount at Format/MountDevice time. Adapted from
// the teacher's functional-option Option type (options.go in the original,
// which configured a Superblock directly); GOSFS options configure the
// Mount wrapper instead, since the superblock's own fields are derived
// entirely from the device's block count.
type MountOption func(*mountConfig)

type mountConfig struct {
	logger *logrus.Logger
	id     uuid.UUID
}

// WithLogger directs a Mount's log output to out instead of logrus's
// standard logger.
func WithLogger(out *logrus.Logger) MountOption {
	return func(c *mountConfig) { c.logger = out }
}

// WithInstanceID pins a Mount's instance id instead of generating a random
// one, useful for deterministic test output.
func WithInstanceID(id uuid.UUID) MountOption {
	return func(c *mountConfig) { c.id = id }
}

func resolveMountConfig(opts []MountOption) mountConfig {
	var c mountConfig
	for _, o := range opts {
		o(&c)
	}
	if c.id == uuid.Nil {
		c.id = uuid.New()
	}
	return c
}
