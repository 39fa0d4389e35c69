package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 4096,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, this should be more restrictive
		return true
	},
}

// trendFeedClient relays analysis run events from NATS to one WebSocket
// peer. The feed is one-directional: incoming frames are only read to
// detect disconnects.
type trendFeedClient struct {
	conn          *websocket.Conn
	send          chan []byte
	subscriptions []*nats.Subscription
	log           *logrus.Logger
}

// TrendWebSocketHandler upgrades the connection and streams every
// trends.detected and snapshot.created event published under eventsTopic.
func TrendWebSocketHandler(natsConn *nats.Conn, eventsTopic string, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).Warn("failed to upgrade to WebSocket")
			return
		}

		client := &trendFeedClient{
			conn: conn,
			send: make(chan []byte, 64),
			log:  log,
		}

		go client.writePump()
		go client.readPump()

		if err := client.subscribe(natsConn, eventsTopic); err != nil {
			log.WithError(err).Warn("failed to subscribe to run events")
			client.close()
			return
		}

		log.WithField("remote", r.RemoteAddr).Info("trend feed client connected")
	}
}

func (c *trendFeedClient) subscribe(natsConn *nats.Conn, eventsTopic string) error {
	topics := []string{
		fmt.Sprintf("%s.trends.detected", eventsTopic),
		fmt.Sprintf("%s.snapshot.created", eventsTopic),
	}

	for _, topic := range topics {
		sub, err := natsConn.Subscribe(topic, func(msg *nats.Msg) {
			select {
			case c.send <- msg.Data:
			default:
				// Slow consumer; drop the event rather than block the bus.
			}
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		c.subscriptions = append(c.subscriptions, sub)
	}
	return nil
}

// readPump discards client frames and notices when the peer goes away.
func (c *trendFeedClient) readPump() {
	config := DefaultWebSocketConfig()

	defer c.close()

	c.conn.SetReadLimit(config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Debug("WebSocket read error")
			}
			break
		}
	}
}

// writePump pushes queued events to the WebSocket connection.
func (c *trendFeedClient) writePump() {
	config := DefaultWebSocketConfig()
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *trendFeedClient) close() {
	for _, sub := range c.subscriptions {
		sub.Unsubscribe()
	}
	c.subscriptions = nil
	c.conn.Close()
}
