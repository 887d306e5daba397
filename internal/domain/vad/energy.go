package vad

import "eloquence-server-go/internal/util"

// EnergyDetector approximates speech probability from normalized RMS
// energy. It serves as the fallback when no model-backed detector is
// configured and for tests.
type EnergyDetector struct {
	// Gain maps typical speech energy (~0.05 to 0.3) onto the
	// probability scale.
	Gain float64
}

func NewEnergyDetector() *EnergyDetector {
	return &EnergyDetector{Gain: 4.0}
}

func (d *EnergyDetector) Probability(frame []byte) (float64, error) {
	p := util.RMSEnergy(frame) * d.Gain
	if p > 1 {
		p = 1
	}
	return p, nil
}

func (d *EnergyDetector) Reset() {}
