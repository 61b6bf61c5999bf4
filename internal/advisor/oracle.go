package advisor

import (
	"context"
	"strings"

	"crypto-herald/internal/metrics"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const OracleFallback = "🔮 Mes visions sont troubles... (Erreur IA, reessaie plus tard)."

// Oracle is the community helper. It never fails: any error becomes the
// fallback line.
type Oracle struct {
	tracer  trace.Tracer
	voice   Asker
	metrics *metrics.Metrics
}

func NewOracle(tracer trace.Tracer, voice Asker, m *metrics.Metrics) *Oracle {
	return &Oracle{tracer: tracer, voice: voice, metrics: m}
}

func (o *Oracle) Reply(ctx context.Context, question string) string {
	ctx, span := o.tracer.Start(ctx, "oracle.reply")
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		question = "Bonjour !"
	}
	if o.voice == nil {
		return OracleFallback
	}
	reply, err := o.voice.Ask(ctx, "QUESTION : "+question, 0)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			span.RecordError(err)
		}
		o.metrics.NarrativeFailed("oracle")
		log.Warn().Str("component", "oracle").Err(err).Msg("oracle reply failed")
		return OracleFallback
	}
	return strings.TrimSpace(reply)
}
