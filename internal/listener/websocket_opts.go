package listener

import "net/http"

type WebsocketListenerOpt func(*WebsocketListener)

// WithAllowedOrigins restricts browser connections to the given origins.
// Empty means any origin, for native clients and local development.
func WithAllowedOrigins(origins []string) WebsocketListenerOpt {
	return func(l *WebsocketListener) {
		l.allowedOrigins = origins
	}
}

// WithMetricsHandler exposes the handler at /metrics on the same port
func WithMetricsHandler(h http.Handler) WebsocketListenerOpt {
	return func(l *WebsocketListener) {
		l.metricsHandler = h
	}
}
