package o11y

import (
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// NewPrometheusMeterProvider builds an otel SDK MeterProvider backed by
// the Prometheus exporter. The returned provider's registry is whatever
// the default Prometheus registerer is wired to by the caller (typically
// promhttp.Handler on an admin endpoint); WikiGR does not prescribe the
// HTTP exposition.
func NewPrometheusMeterProvider() (*sdkmetric.MeterProvider, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)), nil
}
