package video

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/ivlev/turntable/internal/video"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
