package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"printer-fieldops/internal/event"
	"printer-fieldops/internal/metrics"
	"printer-fieldops/internal/model"
)

const dispatchTimeout = 10 * time.Second

// Publisher is satisfied by *MQTTPublisher.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// TokenSource lists the push tokens registered by accounts holding roles.
type TokenSource interface {
	TokensForRoles(ctx context.Context, roles []model.Role) ([]string, error)
}

// Message is the JSON document the push gateway consumes.
type Message struct {
	EventID   string         `json:"event_id"`
	Incident  model.Incident `json:"incident"`
	FCMTokens []string       `json:"fcm_tokens"`
	SentAt    time.Time      `json:"sent_at"`
}

type Notifier struct {
	bus       event.Bus
	publisher Publisher
	tokens    TokenSource
	topic     string
	now       func() time.Time
}

func NewNotifier(bus event.Bus, publisher Publisher, tokens TokenSource, topic string) *Notifier {
	return &Notifier{bus: bus, publisher: publisher, tokens: tokens, topic: topic, now: time.Now}
}

// Run dispatches critical incidents until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	events, unsubscribe := n.bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.Type != event.TypeIncidentCritical {
				continue
			}
			n.dispatch(ctx, e)
		}
	}
}

func (n *Notifier) dispatch(ctx context.Context, e event.Event) {
	incident, ok := e.Payload.(model.Incident)
	if !ok {
		slog.Warn("critical incident event without incident payload", "event_id", e.ID)
		metrics.Notifications.WithLabelValues("skipped").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	tokens, err := n.tokens.TokensForRoles(ctx, []model.Role{model.RoleAdmin, model.RoleSuperAdmin})
	if err != nil {
		slog.Error("load push tokens", "incident_id", incident.ID, "error", err)
		metrics.Notifications.WithLabelValues("failed").Inc()
		return
	}
	if len(tokens) == 0 {
		slog.Info("no push tokens registered for admins", "incident_id", incident.ID)
		metrics.Notifications.WithLabelValues("skipped").Inc()
		return
	}

	payload, err := json.Marshal(Message{
		EventID:   e.ID,
		Incident:  incident,
		FCMTokens: tokens,
		SentAt:    n.now().UTC(),
	})
	if err != nil {
		slog.Error("encode notification", "incident_id", incident.ID, "error", err)
		metrics.Notifications.WithLabelValues("failed").Inc()
		return
	}

	if err := n.publisher.Publish(ctx, n.topic, payload); err != nil {
		slog.Error("publish critical incident", "incident_id", incident.ID, "topic", n.topic, "error", err)
		metrics.Notifications.WithLabelValues("failed").Inc()
		return
	}

	slog.Info("critical incident dispatched", "incident_id", incident.ID, "recipients", len(tokens))
	metrics.Notifications.WithLabelValues("sent").Inc()
}
