package sim

import (
	"automated-kingdom/server/internal/telemetry"
	"automated-kingdom/server/logging"
)

// Deps carries shared infrastructure dependencies required by the simulation engine.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
}

func (d Deps) normalized() Deps {
	if d.Logger == nil {
		d.Logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.Clock == nil {
		d.Clock = logging.SystemClock{}
	}
	return d
}
