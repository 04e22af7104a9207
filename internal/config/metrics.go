package config

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	configMetricsMu      sync.RWMutex
	configValidations    metric.Int64Counter
	configValidationsErr bool
)

func configValidationCounter() metric.Int64Counter {
	configMetricsMu.RLock()
	if configValidations != nil || configValidationsErr {
		defer configMetricsMu.RUnlock()
		return configValidations
	}
	configMetricsMu.RUnlock()

	configMetricsMu.Lock()
	defer configMetricsMu.Unlock()
	if configValidations != nil || configValidationsErr {
		return configValidations
	}
	meter := otel.Meter("directory-admin-service/config")
	counter, err := meter.Int64Counter(
		"config_validation_events_total",
		metric.WithDescription("Configuration validation outcomes by profile and error class"),
	)
	if err != nil {
		configValidationsErr = true
		return nil
	}
	configValidations = counter
	return configValidations
}

func recordConfigValidationEvent(ctx context.Context, profile, outcome, class string) {
	counter := configValidationCounter()
	if counter == nil {
		return
	}
	counter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("profile", profile),
			attribute.String("outcome", outcome),
			attribute.String("error_class", class),
		),
	)
}

func classifyConfigError(err error) string {
	if err == nil {
		return "none"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "secret"):
		return "secret"
	case strings.Contains(msg, "token lifetime"):
		return "token_lifetime"
	case strings.Contains(msg, "DATABASE_DSN"):
		return "database"
	default:
		return "other"
	}
}
