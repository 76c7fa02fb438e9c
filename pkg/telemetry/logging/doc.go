// Package logging builds the service's structured logger on log/slog.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    RedactIPs: true,
//	})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
// Components derive their own logger with a "component" attribute:
//
//	log := logger.With("component", "limits.manager")
//
// Request-scoped fields travel in the context:
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logging.FromContext(ctx, log).Info("checked")
//
// # Redaction
//
// With RedactIPs set, client addresses are masked before they reach the
// output: 203.0.113.7 becomes 203.*.*.*.
package logging
