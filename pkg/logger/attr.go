package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// AccountID records the account identifier under the key "account_id".
// If id is nil, it returns an empty Attr.
func AccountID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("account_id", id)
}

// EventType records the security event type under the key "event_type".
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

// IPHash records the keyed hash of a client address under the key "ip_hash".
// Raw addresses never go through this helper.
func IPHash(hash string) slog.Attr {
	return slog.String("ip_hash", hash)
}

// Action records a form action name under the key "action".
func Action(name string) slog.Attr {
	return slog.String("action", name)
}
