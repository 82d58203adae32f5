// Package http provides configuration options for the HTTP server.
package http

import (
	"fmt"
	"time"

	"github.com/finsight-io/finsight/pkg/options"
	"github.com/spf13/pflag"
)

// Options defines configuration options for the HTTP server.
type Options struct {
	Addr         string        `json:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	IdleTimeout  time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`
	// EnableCORS allows cross-origin requests from browser frontends.
	EnableCORS bool `json:"enable-cors" mapstructure:"enable-cors"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Addr:         ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
		EnableCORS:   true,
	}
}

// AddFlags adds flags for HTTP server options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, options.Join(prefixes...)+"http.addr", o.Addr, "HTTP server listen address.")
	fs.DurationVar(&o.ReadTimeout, options.Join(prefixes...)+"http.read-timeout", o.ReadTimeout, "HTTP read timeout.")
	fs.DurationVar(&o.WriteTimeout, options.Join(prefixes...)+"http.write-timeout", o.WriteTimeout, "HTTP write timeout.")
	fs.DurationVar(&o.IdleTimeout, options.Join(prefixes...)+"http.idle-timeout", o.IdleTimeout, "HTTP idle timeout.")
	fs.BoolVar(&o.EnableCORS, options.Join(prefixes...)+"http.enable-cors", o.EnableCORS, "Enable CORS middleware.")
}

// Validate validates the HTTP server options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Addr == "" {
		errs = append(errs, fmt.Errorf("http addr is required"))
	}
	return errs
}

// Complete completes the HTTP server options with defaults.
func (o *Options) Complete() error {
	return nil
}
