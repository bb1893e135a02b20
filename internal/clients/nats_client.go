package clients

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"tip-ledger/internal/config"
	"tip-ledger/internal/dto"
	"tip-ledger/internal/ledger"
	"tip-ledger/internal/metrics"

	"github.com/nats-io/nats.go"
)

// OutcomeQueue is the queue group of ledger instances consuming outcomes.
const OutcomeQueue = "tipledger-ledger"

// NATSClient NATS client for the settlement bus
type NATSClient struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSClient connects to NATS. prefix roots every subject, e.g. "tipledger".
func NewNATSClient(cfg config.NATSConfig, prefix string) (*NATSClient, error) {
	connectTimeout := 10 * time.Second
	if cfg.Timeout > 0 {
		connectTimeout = time.Duration(cfg.Timeout) * time.Second
	}
	log.Printf("🔌 Using NATS timeout: %v", connectTimeout)

	conn, err := nats.Connect(cfg.URL,
		nats.Name("tip-ledger"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(time.Duration(cfg.ReconnectWait)*time.Second),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("⚠️ [NATS] disconnected: %v", err)
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("✅ [NATS] reconnected to %s", nc.ConnectedUrl())
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect NATS failed: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)
	return NewNATSClientFromConn(conn, prefix), nil
}

// NewNATSClientFromConn wraps an existing connection.
func NewNATSClientFromConn(conn *nats.Conn, prefix string) *NATSClient {
	return &NATSClient{conn: conn, prefix: strings.TrimSuffix(prefix, ".")}
}

// RequestSubject <prefix>.requests.<kind>
func (c *NATSClient) RequestSubject(kind ledger.RequestKind) string {
	return fmt.Sprintf("%s.requests.%s", c.prefix, kind)
}

// OutcomeSubject <prefix>.outcomes
func (c *NATSClient) OutcomeSubject() string {
	return c.prefix + ".outcomes"
}

// EventSubject <prefix>.events.<event>
func (c *NATSClient) EventSubject(event string) string {
	return fmt.Sprintf("%s.events.%s", c.prefix, event)
}

// PublishRequest publishes a settlement request for relayers.
func (c *NATSClient) PublishRequest(req *dto.SettlementRequestMessage) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal settlement request failed: %w", err)
	}
	msg := nats.NewMsg(c.RequestSubject(ledger.RequestKind(req.Kind)))
	msg.Header.Set("Request-Id", req.ID)
	msg.Data = data
	if err := c.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish settlement request failed: %w", err)
	}
	return nil
}

// PublishEvent publishes a committed ledger event.
func (c *NATSClient) PublishEvent(e ledger.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal ledger event failed: %w", err)
	}
	if err := c.conn.Publish(c.EventSubject(e.Event), data); err != nil {
		return fmt.Errorf("publish ledger event failed: %w", err)
	}
	return nil
}

// SubscribeToOutcomes consumes relayer outcomes in a queue group. When the
// sender used request-reply, the handler result is sent back as an OutcomeAck.
func (c *NATSClient) SubscribeToOutcomes(handler func(*dto.SettlementOutcomeMessage) (string, error)) (*nats.Subscription, error) {
	subject := c.OutcomeSubject()
	sub, err := c.conn.QueueSubscribe(subject, OutcomeQueue, func(msg *nats.Msg) {
		metrics.NATSMessagesReceived.WithLabelValues("outcome").Inc()

		var out dto.SettlementOutcomeMessage
		if err := json.Unmarshal(msg.Data, &out); err != nil {
			log.Printf("❌ [NATS] Parse outcome failed: %v", err)
			metrics.NATSMessagesFailed.WithLabelValues("outcome", "decode").Inc()
			c.reply(msg, dto.OutcomeAck{Error: err.Error()})
			return
		}

		status, err := handler(&out)
		ack := dto.OutcomeAck{RequestID: out.RequestID, Status: status}
		if err != nil {
			metrics.NATSMessagesFailed.WithLabelValues("outcome", "reconcile").Inc()
			ack.Error = err.Error()
		}
		c.reply(msg, ack)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s failed: %w", subject, err)
	}
	log.Printf("✅ [NATS] Subscribed: %s (queue %s)", subject, OutcomeQueue)
	return sub, nil
}

// SubscribeToRequests consumes settlement requests of one kind. It is
// used by relayers living in this process.
func (c *NATSClient) SubscribeToRequests(kind ledger.RequestKind, queue string, handler func(*dto.SettlementRequestMessage)) (*nats.Subscription, error) {
	subject := c.RequestSubject(kind)
	sub, err := c.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		metrics.NATSMessagesReceived.WithLabelValues(string(kind)).Inc()

		var req dto.SettlementRequestMessage
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Printf("❌ [NATS] Parse settlement request failed: %v", err)
			metrics.NATSMessagesFailed.WithLabelValues(string(kind), "decode").Inc()
			return
		}
		handler(&req)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s failed: %w", subject, err)
	}
	log.Printf("✅ [NATS] Subscribed: %s (queue %s)", subject, queue)
	return sub, nil
}

func (c *NATSClient) reply(msg *nats.Msg, ack dto.OutcomeAck) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(ack)
	if err != nil {
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Printf("⚠️ [NATS] Reply to %s failed: %v", msg.Reply, err)
	}
}

// IsConnected reports the connection state for health checks.
func (c *NATSClient) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Flush waits until the server has processed everything published so far.
func (c *NATSClient) Flush() error {
	return c.conn.Flush()
}

// Close drains subscriptions and closes the connection.
func (c *NATSClient) Close() {
	if c.conn != nil {
		if err := c.conn.Drain(); err != nil {
			c.conn.Close()
		}
	}
}

// GetConnection GetNATSconnection
func (c *NATSClient) GetConnection() *nats.Conn {
	return c.conn
}
