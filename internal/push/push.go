// Package push is the realtime channel client. The server publishes
// change markers and Rezeki alerts over MQTT and ingests broadcast
// submissions from mosque devices; with no broker configured the channel
// is simply absent and in-process subscriptions drive refreshes alone.
package push

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"morehradar/server/internal/model"
)

const (
	// TopicChanged carries payloadless change markers; consumers refetch.
	TopicChanged = "morehradar/signals/changed"
	// TopicBroadcast carries broadcast drafts from mosque devices.
	TopicBroadcast = "morehradar/signals/broadcast"
	// TopicAlerts carries Rezeki alerts for newly active signals.
	TopicAlerts = "morehradar/alerts"
)

// Alert is the payload published for each new active signal.
type Alert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	ID    int64  `json:"id"`
}

// Client wraps the paho connection.
type Client struct {
	conn   mqtt.Client
	logger *slog.Logger
}

// Connect dials the broker. The client id is unique per process so
// multiple server nodes can share a broker.
func Connect(brokerURL string, logger *slog.Logger) (*Client, error) {
	clientID := fmt.Sprintf("morehradar-server-%s", uuid.NewString())
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetOrderMatters(false).
		SetConnectTimeout(5 * time.Second)

	conn := mqtt.NewClient(opts)
	if token := conn.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker: %w", token.Error())
	}

	logger.Info("connected to mqtt broker", "broker", brokerURL, "client_id", clientID)
	return &Client{conn: conn, logger: logger}, nil
}

// Disconnect closes the connection.
func (c *Client) Disconnect() {
	c.conn.Disconnect(250)
}

// PublishChange emits a change marker. The payload is an empty object;
// the contract is notification-only.
func (c *Client) PublishChange() {
	token := c.conn.Publish(TopicChanged, 0, false, []byte("{}"))
	token.Wait()
	if err := token.Error(); err != nil {
		c.logger.Warn("publish change marker failed", "error", err)
	}
}

// PublishAlert emits a Rezeki alert for a newly active signal.
func (c *Client) PublishAlert(s model.Signal) {
	alert := Alert{
		Title: "🟢 Rezeki Alert!",
		Body:  fmt.Sprintf("%s baru siar %s (%d pax)!", s.Name, s.FoodDesc, s.Pax),
		ID:    s.ID,
	}
	data, err := json.Marshal(alert)
	if err != nil {
		c.logger.Warn("encode alert failed", "error", err)
		return
	}
	token := c.conn.Publish(TopicAlerts, 0, false, data)
	token.Wait()
	if err := token.Error(); err != nil {
		c.logger.Warn("publish alert failed", "id", s.ID, "error", err)
	}
}

// SubscribeChanges invokes fn for every change marker seen on the channel.
func (c *Client) SubscribeChanges(fn func()) error {
	token := c.conn.Subscribe(TopicChanged, 0, func(_ mqtt.Client, _ mqtt.Message) {
		fn()
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicChanged, err)
	}
	return nil
}

// SubscribeBroadcasts feeds decoded drafts to fn. Undecodable payloads are
// logged and dropped.
func (c *Client) SubscribeBroadcasts(fn func(model.Draft)) error {
	token := c.conn.Subscribe(TopicBroadcast, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var draft model.Draft
		if err := json.Unmarshal(msg.Payload(), &draft); err != nil {
			c.logger.Warn("broadcast payload decode failed", "topic", msg.Topic(), "error", err)
			return
		}
		fn(draft)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicBroadcast, err)
	}
	return nil
}
