// Package sensor synthesizes telemetry snapshots. There is no real
// hardware behind it; values follow a bounded random walk so consecutive
// records look like a plausible device rather than white noise.
package sensor

import (
	"math"
	"math/rand"
	"time"

	"github.com/edgesim/edgesim/helpers"
	"github.com/edgesim/edgesim/telemetry"
)

type Generator struct {
	device string
	rnd    *rand.Rand
	seq    uint64

	temperature float64
	humidity    float64
	pressure    float64
	batteryV    float64
}

func NewGenerator(device string) *Generator {
	g := &Generator{
		device: device,
		rnd:    helpers.RandUnix(),
	}
	g.temperature = 18 + g.rnd.Float64()*10
	g.humidity = 35 + g.rnd.Float64()*30
	g.pressure = 990 + g.rnd.Float64()*40
	g.batteryV = 3.9 + g.rnd.Float64()*0.3
	return g
}

// Generate returns one snapshot. Not safe for concurrent use; the
// coordinator tick is the single caller.
func (g *Generator) Generate() telemetry.Record {
	g.seq++
	g.temperature = drift(g.rnd, g.temperature, 0.3, -20, 50)
	g.humidity = drift(g.rnd, g.humidity, 1.0, 0, 100)
	g.pressure = drift(g.rnd, g.pressure, 0.5, 950, 1060)
	g.batteryV = drift(g.rnd, g.batteryV, 0.005, 3.1, 4.2)

	return telemetry.Record{
		Device: g.device,
		Seq:    g.seq,
		Time:   time.Now().UnixNano(),
		Ambient: telemetry.Ambient{
			TemperatureC: round2(g.temperature),
			HumidityPct:  round2(g.humidity),
			PressureHPa:  round2(g.pressure),
		},
		Power: telemetry.Power{
			BatteryV:   round2(g.batteryV),
			BatteryPct: batteryPct(g.batteryV),
		},
		Link: telemetry.Link{
			RSSI: -90 + g.rnd.Intn(50),
		},
	}
}

func drift(rnd *rand.Rand, v, step, min, max float64) float64 {
	v += (rnd.Float64()*2 - 1) * step
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return v
}

// Li-ion discharge is not linear but this is a simulator.
func batteryPct(v float64) int {
	p := int((v - 3.1) / (4.2 - 3.1) * 100)
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return p
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
