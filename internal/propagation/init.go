package propagation

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	satellite "github.com/joshuaferrara/go-satellite"
)

// Config is the process-wide propagation setup.
type Config struct {
	Gravity string // "wgs72" (default) or "wgs84"
	Workers int    // <= 0 selects runtime.NumCPU()
}

var (
	initOnce    sync.Once
	initialized atomic.Bool
	gravity     satellite.Gravity
)

// Init applies cfg once per process. It is safe to call concurrently; calls after
// the first successful one are no-ops. Bind fails until Init has succeeded.
func Init(cfg Config) error {
	g, err := parseGravity(cfg.Gravity)
	if err != nil {
		return err
	}
	initOnce.Do(func() {
		gravity = g
		SetWorkers(cfg.Workers)
		initialized.Store(true)
	})
	return nil
}

// Initialized reports whether Init has run.
func Initialized() bool {
	return initialized.Load()
}

func parseGravity(s string) (satellite.Gravity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wgs72":
		return satellite.GravityWGS72, nil
	case "wgs84":
		return satellite.GravityWGS84, nil
	}
	return satellite.GravityWGS72, fmt.Errorf("unknown gravity model %q", s)
}
