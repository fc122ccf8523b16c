package kiosk

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
)

// ProviderSet is kiosk cache providers.
var ProviderSet = wire.NewSet(
	NewSource,
	NewCacheFromConf,
	NewMetrics,
	wire.InterfaceValue(new(prometheus.Registerer), prometheus.DefaultRegisterer),
)
