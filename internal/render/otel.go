// internal/render/otel.go
package render

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/Changplay12345/flight-animation/internal/render"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
