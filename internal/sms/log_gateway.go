package sms

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogGateway is the development gateway: it logs the message instead of
// delivering it and always reports success. The recipient number is masked
// because logs are not a place for raw phone numbers.
type LogGateway struct {
	log zerolog.Logger
}

// NewLogGateway returns a gateway that writes deliveries to log.
func NewLogGateway(log zerolog.Logger) *LogGateway {
	return &LogGateway{log: log}
}

// Send implements Gateway.
func (g *LogGateway) Send(_ context.Context, toE164, body string) (string, error) {
	id := uuid.NewString()
	g.log.Info().
		Str("delivery_id", id).
		Str("to", MaskPhone(toE164)).
		Int("body_len", len(body)).
		Msg("sms delivery (log gateway)")
	return id, nil
}

// MaskPhone keeps the country prefix and the last two digits of an E.164
// number, replacing the middle with asterisks.
func MaskPhone(e164 string) string {
	if len(e164) <= 5 {
		return "***"
	}
	masked := []byte(e164)
	for i := 3; i < len(masked)-2; i++ {
		masked[i] = '*'
	}
	return string(masked)
}
