package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"RainLedger/internal/observability"
)

// NATS subjects for the oracle bridge. Requests go out on
// rain.oracle.{kind}.request; the external compute service answers on
// rain.oracle.{kind}.fulfill.
const (
	StreamName           = "RAIN_ORACLE"
	subjectRequestPrefix = "rain.oracle"
)

// FulfillmentMsg is the wire format of an oracle answer. Value is a decimal
// string — millimeters for rainfall, capital units for premiums — and is
// rounded to the nearest integer unit on ingest.
type FulfillmentMsg struct {
	Handle uuid.UUID `json:"handle"`
	Value  string    `json:"value"`
	Failed bool      `json:"failed,omitempty"`
}

// requestMsg is the outbound request envelope.
type requestMsg struct {
	Handle uuid.UUID   `json:"handle"`
	Meta   RequestMeta `json:"meta"`
}

// Bridge connects a request Table to NATS JetStream: it publishes opened
// requests and consumes fulfillments back into the table.
type Bridge struct {
	js        jetstream.JetStream
	table     *Table
	metrics   *observability.Metrics
	log       zerolog.Logger
	consumers []jetstream.ConsumeContext
}

func NewBridge(js jetstream.JetStream, table *Table, metrics *observability.Metrics, log zerolog.Logger) *Bridge {
	return &Bridge{js: js, table: table, metrics: metrics, log: log}
}

// PublishRequest implements RequestPublisher.
func (b *Bridge) PublishRequest(handle uuid.UUID, meta RequestMeta) error {
	data, err := json.Marshal(requestMsg{Handle: handle, Meta: meta})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	subject := fmt.Sprintf("%s.%s.request", subjectRequestPrefix, meta.Kind)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := b.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if b.metrics != nil {
		b.metrics.OracleRequestsOpened.WithLabelValues(meta.Kind).Inc()
	}
	return nil
}

// Subscribe creates durable consumers for premium and rainfall fulfillments.
// Explicit ACK; a malformed or unknown fulfillment is ACKed and dropped so it
// is not redelivered forever, while transient table errors NAK for retry.
func (b *Bridge) Subscribe(ctx context.Context) error {
	kinds := []string{"premium", "rainfall"}
	for _, kind := range kinds {
		consumer, err := b.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
			Durable:       fmt.Sprintf("rainledger-%s-fulfill", kind),
			FilterSubject: fmt.Sprintf("%s.%s.fulfill", subjectRequestPrefix, kind),
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer for %s: %w", kind, err)
		}

		cc, err := consumer.Consume(func(msg jetstream.Msg) {
			if err := b.handleFulfillment(kind, msg.Data()); err != nil {
				if b.metrics != nil {
					b.metrics.OracleMalformedDropped.Inc()
				}
				b.log.Warn().Err(err).Str("subject", msg.Subject()).Msg("dropping oracle fulfillment")
			}
			msg.Ack()
		})
		if err != nil {
			return fmt.Errorf("consume %s fulfillments: %w", kind, err)
		}
		b.consumers = append(b.consumers, cc)
		b.log.Info().Str("kind", kind).Msg("subscribed to oracle fulfillments")
	}
	return nil
}

func (b *Bridge) handleFulfillment(kind string, data []byte) error {
	var msg FulfillmentMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("unmarshal fulfillment: %w", err)
	}

	if msg.Failed {
		if err := b.table.Fail(msg.Handle); err != nil {
			return err
		}
		b.observeFulfillment(kind, "failed", msg.Handle)
		return nil
	}

	value, err := decimal.NewFromString(msg.Value)
	if err != nil {
		return fmt.Errorf("parse fulfillment value %q: %w", msg.Value, err)
	}
	if err := b.table.Fulfill(msg.Handle, value.Round(0).IntPart()); err != nil {
		return err
	}
	b.observeFulfillment(kind, "fulfilled", msg.Handle)
	return nil
}

func (b *Bridge) observeFulfillment(kind, outcome string, handle uuid.UUID) {
	if b.metrics == nil {
		return
	}
	b.metrics.OracleFulfillments.WithLabelValues(kind, outcome).Inc()
	if openedAt, ok := b.table.OpenedAt(handle); ok {
		b.metrics.OracleFulfillLatency.WithLabelValues(kind).Observe(time.Since(openedAt).Seconds())
	}
}

// Stop gracefully stops all consumers.
func (b *Bridge) Stop() {
	for _, cc := range b.consumers {
		cc.Stop()
	}
}

// EnsureStream creates the oracle stream if it does not exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectRequestPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", StreamName, err)
	}
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}
