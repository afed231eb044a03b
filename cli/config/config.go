package config

import (
	"fmt"

	"github.com/histokit/slidepress/mask"
	"github.com/histokit/slidepress/pipeline"
	"github.com/histokit/slidepress/search"
	"github.com/histokit/slidepress/store"
	"github.com/histokit/slidepress/tiling"
)

// Config represents a slidepress.yaml configuration file.
// All values are optional and act as defaults for run flags.
// CLI flags always override config values.
type Config struct {
	// Codec selects the backend, "jxl" or "zstd".
	Codec    string          `yaml:"codec"`
	Mask     mask.Config     `yaml:"mask"`
	Tiling   tiling.Config   `yaml:"tiling"`
	Search   search.Config   `yaml:"search"`
	Pipeline pipeline.Config `yaml:"pipeline"`
	// S3 enables post-run mirroring when present.
	S3 *store.S3Config `yaml:"s3,omitempty"`
}

// Default returns a Config with every section at its package default.
func Default() *Config {
	return &Config{
		Codec:    "jxl",
		Mask:     mask.DefaultConfig(),
		Tiling:   tiling.DefaultConfig(),
		Search:   search.DefaultConfig(),
		Pipeline: pipeline.DefaultConfig(),
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Codec != "jxl" && c.Codec != "zstd" {
		return fmt.Errorf("codec must be jxl or zstd, got %q", c.Codec)
	}
	if err := c.Mask.Validate(); err != nil {
		return fmt.Errorf("mask: %w", err)
	}
	if err := c.Tiling.Validate(); err != nil {
		return fmt.Errorf("tiling: %w", err)
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if c.S3 != nil {
		if err := c.S3.Validate(); err != nil {
			return fmt.Errorf("s3: %w", err)
		}
	}
	return nil
}
