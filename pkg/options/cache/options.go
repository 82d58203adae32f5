// Package cache provides configuration options for the search result cache.
package cache

import (
	"fmt"
	"time"

	"github.com/finsight-io/finsight/pkg/options"
	redisopts "github.com/finsight-io/finsight/pkg/options/redis"
	"github.com/spf13/pflag"
)

// Options defines configuration options for the knowledge search cache.
type Options struct {
	Enabled   bool               `json:"enabled" mapstructure:"enabled"`
	TTL       time.Duration      `json:"ttl" mapstructure:"ttl"`
	KeyPrefix string             `json:"key-prefix" mapstructure:"key-prefix"`
	Redis     *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Enabled:   false,
		TTL:       time.Hour,
		KeyPrefix: "finsight:search:",
		Redis:     redisopts.NewOptions(),
	}
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, options.Join(prefixes...)+"cache.enabled", o.Enabled, "Enable Redis cache for search results.")
	fs.DurationVar(&o.TTL, options.Join(prefixes...)+"cache.ttl", o.TTL, "Cache entry time to live.")
	fs.StringVar(&o.KeyPrefix, options.Join(prefixes...)+"cache.key-prefix", o.KeyPrefix, "Cache key prefix.")
	o.Redis.AddFlags(fs, append(prefixes, "cache")...)
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache ttl must be positive"))
	}
	errs = append(errs, o.Redis.Validate()...)
	return errs
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return o.Redis.Complete()
}
