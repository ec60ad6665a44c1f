package utils

import (
	"os"
	"strconv"
	"strings"
)

func IsTracingEnabled() bool {
	return GetEnvBool("OTEL_TRACES_ENABLED", false)
}

func OTelServiceName() string {
	serviceName := strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME"))
	if serviceName == "" {
		serviceName = "launch-waitlist"
	}
	return serviceName
}

// OTelSampleRatio reads OTEL_TRACES_SAMPLER_RATIO, clamped to [0, 1]. Defaults to 1 (sample everything).
func OTelSampleRatio() float64 {
	v := GetEnvTrimmed("OTEL_TRACES_SAMPLER_RATIO")
	if v == "" {
		return 1
	}

	ratio, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 1
	}

	switch {
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1
	default:
		return ratio
	}
}
