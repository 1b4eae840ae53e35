package stretch

import "time"

// Option configures a Stretcher at construction.
type Option func(*config)

type config struct {
	seed   int64
	seeded bool
}

// WithSeed fixes the seed of the generator used for randomised phase steps
// at large stretch ratios. Without it the seed is taken from the clock.
func WithSeed(seed int64) Option {
	return func(c *config) {
		c.seed = seed
		c.seeded = true
	}
}

func applyOptions(opts []Option) config {
	var cfg config
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if !cfg.seeded {
		cfg.seed = time.Now().UnixNano()
	}

	return cfg
}
