package observe

import "log/slog"

// LogObserver writes every event to logger: failures at Warn, completions
// at Info, everything else at Debug.
func LogObserver(logger *slog.Logger) Observer {
	return Observer{
		Name: "log",
		OnEvent: func(ev Event) {
			attrs := []any{
				"kind", string(ev.Kind),
				"request_id", ev.RequestID,
				"provider", ev.Provider,
				"event_type", ev.EventType,
				"delivery_id", ev.DeliveryID,
			}
			switch ev.Kind {
			case KindCompleted:
				logger.Info("webhook completed", append(attrs,
					"status", ev.Status,
					"duration_ms", ev.Duration.Milliseconds(),
				)...)
			case KindBodyTooLarge, KindJSONParseFailed, KindVerificationFailed,
				KindSchemaValidationFailed, KindHandlerFailed:
				if ev.Error != "" {
					attrs = append(attrs, "error", ev.Error)
				}
				logger.Warn("webhook stage failed", attrs...)
			default:
				logger.Debug("webhook stage", attrs...)
			}
		},
	}
}
