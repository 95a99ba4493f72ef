// Package admission provides configuration for the application wiring.
package admission

import "time"

// Config captures dependency and runtime settings.
type Config struct {
	HTTPListenAddr     string
	EnableHTTP         bool
	EnableAuth         bool
	AdminToken         string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	DrainTimeout       time.Duration
	MaxBodyBytes       int64
	EndpointCosts      map[string]int64
	TierOverrides      map[Tier]LimitProfile
	ViolationRetention int
	ViolationBuffer    int
	ViolationTopN      int
	Registry           RegistryPolicy
	SweepInterval      time.Duration
	Logger             Logger
	Metrics            Metrics
}
