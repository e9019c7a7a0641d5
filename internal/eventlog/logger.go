package eventlog

import (
	"context"

	"github.com/northstar-market/concierge/internal/observability"
)

// publisher is the capability both KafkaProducer and ClickHouseSink offer;
// Logger treats either as optional and publishes nothing if neither is
// configured.
type publisher interface {
	publish(ctx context.Context, ev Event) error
}

type kafkaPublisher struct{ p *KafkaProducer }

func (k kafkaPublisher) publish(ctx context.Context, ev Event) error { return k.p.Publish(ctx, ev) }

type clickhousePublisher struct{ s *ClickHouseSink }

func (c clickhousePublisher) publish(ctx context.Context, ev Event) error { return c.s.Insert(ctx, ev) }

// Logger fans audit events out to whichever backends are configured.
type Logger struct {
	publishers []publisher
}

// NewLogger wires a Logger from optional backends; either may be nil.
func NewLogger(producer *KafkaProducer, sink *ClickHouseSink) *Logger {
	l := &Logger{}
	if producer != nil {
		l.publishers = append(l.publishers, kafkaPublisher{producer})
	}
	if sink != nil {
		l.publishers = append(l.publishers, clickhousePublisher{sink})
	}
	return l
}

// Log publishes ev to every configured backend, logging (not failing) on
// error — the audit trail is best-effort and must never block a
// conversation turn.
func (l *Logger) Log(ctx context.Context, ev Event) {
	if l == nil {
		return
	}
	log := observability.LoggerWithTrace(ctx)
	for _, p := range l.publishers {
		if err := p.publish(ctx, ev); err != nil {
			log.Warn().Err(err).Str("event_type", ev.Type).Msg("eventlog_publish_failed")
		}
	}
}
