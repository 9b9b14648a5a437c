package services

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"agrimarket-backend/internal/metrics"
	"agrimarket-backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 32
)

// FeedMessage is a frame sent over the sales feed
type FeedMessage struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// SalePublisher is notified after a purchase commits
type SalePublisher interface {
	PublishSale(transaction *models.Transaction)
}

type feedClient struct {
	userID string
	conn   *websocket.Conn
	send   chan FeedMessage
	hub    *feedHub
}

type sale struct {
	farmerID string
	message  FeedMessage
}

// feedHub owns the connection set; only run touches the maps
type feedHub struct {
	users      map[string]map[*feedClient]bool
	register   chan *feedClient
	unregister chan *feedClient
	publish    chan sale
	done       chan struct{}
}

// SalesFeed pushes completed sales to the selling farmer's open sockets
type SalesFeed struct {
	hub       *feedHub
	upgrader  websocket.Upgrader
	log       logrus.FieldLogger
	closeOnce sync.Once
}

// NewSalesFeed creates the feed and starts its hub. Origins are matched
// exactly; "*" or an empty list accepts any origin.
func NewSalesFeed(log logrus.FieldLogger, allowedOrigins []string) *SalesFeed {
	hub := &feedHub{
		users:      make(map[string]map[*feedClient]bool),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		publish:    make(chan sale, 64),
		done:       make(chan struct{}),
	}

	feed := &SalesFeed{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}

	go hub.run()

	return feed
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Serve upgrades the request and subscribes the socket to userID's sales
func (f *SalesFeed) Serve(c *gin.Context, userID string) {
	conn, err := f.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		f.log.WithError(err).Warn("sales feed upgrade failed")
		return
	}

	client := &feedClient{
		userID: userID,
		conn:   conn,
		send:   make(chan FeedMessage, sendBufferSize),
		hub:    f.hub,
	}

	select {
	case f.hub.register <- client:
	case <-f.hub.done:
		conn.Close()
		return
	}

	go client.writePump(f.log)
	go client.readPump(f.log)
}

// PublishSale implements SalePublisher
func (f *SalesFeed) PublishSale(transaction *models.Transaction) {
	if transaction == nil || transaction.Farmer.ID == "" {
		return
	}

	msg := sale{
		farmerID: transaction.Farmer.ID,
		message:  FeedMessage{Type: "sale", Data: transaction},
	}

	select {
	case f.hub.publish <- msg:
	case <-f.hub.done:
	default:
		f.log.WithField("transaction_id", transaction.ID).Warn("sales feed backlog full, dropping event")
	}
}

// Close disconnects every client and stops the hub
func (f *SalesFeed) Close() {
	f.closeOnce.Do(func() {
		close(f.hub.done)
	})
}

func (h *feedHub) run() {
	for {
		select {
		case client := <-h.register:
			if h.users[client.userID] == nil {
				h.users[client.userID] = make(map[*feedClient]bool)
			}
			h.users[client.userID][client] = true
			metrics.FeedConnected()

			client.send <- FeedMessage{Type: "connected", Message: "Subscribed to sales feed"}

		case client := <-h.unregister:
			h.remove(client)

		case s := <-h.publish:
			for client := range h.users[s.farmerID] {
				select {
				case client.send <- s.message:
				default:
					// slow consumer
					h.remove(client)
				}
			}

		case <-h.done:
			for _, clients := range h.users {
				for client := range clients {
					h.remove(client)
				}
			}
			return
		}
	}
}

func (h *feedHub) remove(client *feedClient) {
	clients, ok := h.users[client.userID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.users, client.userID)
	}
	close(client.send)
	metrics.FeedDisconnected()
}

func (c *feedClient) readPump(log logrus.FieldLogger) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var message FeedMessage
		if err := c.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).WithField("user_id", c.userID).Debug("sales feed read error")
			}
			return
		}
		// the feed is push-only; inbound frames just keep the socket alive
	}
}

func (c *feedClient) writePump(log logrus.FieldLogger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				log.WithError(err).WithField("user_id", c.userID).Debug("sales feed write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
