package env

import (
	"crypto/rand"
	"time"
)

// ProductionEnv is the real-clock, real-randomness Environment used
// outside of tests.
type ProductionEnv struct{}

// NewProductionEnv returns a ready-to-use ProductionEnv.
func NewProductionEnv() *ProductionEnv {
	return &ProductionEnv{}
}

// IsSimulation reports whether this Environment is the simulation
// implementation; always false for ProductionEnv.
func (*ProductionEnv) IsSimulation() bool { return false }

func (*ProductionEnv) Now() time.Time { return time.Now() }

func (*ProductionEnv) WallClockSecs() int64 { return time.Now().Unix() }

func (*ProductionEnv) Sleep(d time.Duration) { time.Sleep(d) }

func (*ProductionEnv) RandomBytes(buf []byte) error {
	_, err := rand.Read(buf)
	return err
}
