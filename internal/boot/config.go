// Package boot wires the storage, catalog, transaction, executor, and flow
// layers into one running engine. Grounded on the teacher's config/provider
// shape (server.Config's Bind/Preflight, logical's ProvideX functions),
// hand-written here rather than wire-generated since no code generator runs
// in this exercise.
package boot

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config collects the flags needed to open an engine.
type Config struct {
	DataDir          string
	InMemory         bool
	FlowPollInterval time.Duration
}

// Bind registers the engine's flags on fs, matching the teacher's
// server.Config.Bind shape.
func (c *Config) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&c.DataDir, "data-dir", "", "directory holding the embedded database files")
	fs.BoolVar(&c.InMemory, "in-memory", false, "run with an in-memory backend, discarding data on exit")
	fs.DurationVar(&c.FlowPollInterval, "flow-poll-interval", 50*time.Millisecond,
		"how often the flow runtime polls the CDC log for unconsumed commits")
}

// Preflight validates the configuration before Open is attempted.
func (c *Config) Preflight() error {
	if !c.InMemory && c.DataDir == "" {
		return errors.New("either --in-memory or --data-dir must be set")
	}
	if c.FlowPollInterval <= 0 {
		return errors.Errorf("flow-poll-interval must be positive, got %s", c.FlowPollInterval)
	}
	return nil
}

func (c *Config) String() string {
	if c.InMemory {
		return "in-memory"
	}
	return fmt.Sprintf("data-dir=%s", c.DataDir)
}
