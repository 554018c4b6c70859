// Package websocket streams analysis progress to interested clients while a
// long simulation batch runs.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now (should be restricted in production)
	},
}

// AnalysisProgress is the message streamed while an analysis runs.
type AnalysisProgress struct {
	AnalysisID string `json:"analysis_id"`
	Stage      string `json:"stage"` // "simulating", "scoring", "selecting", "done"
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
}

// Client represents one WebSocket subscriber to an analysis.
type Client struct {
	AnalysisID string
	Conn       *websocket.Conn
	Send       chan []byte
	Hub        *Hub
}

// Hub maintains active WebSocket connections keyed by analysis request.
type Hub struct {
	clients         map[*Client]bool
	analysisClients map[string][]*Client
	register        chan *Client
	unregister      chan *Client
	logger          *logrus.Logger
	mutex           sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:         make(map[*Client]bool),
		analysisClients: make(map[string][]*Client),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		logger:          logger,
	}
}

// Run starts the hub and handles client registration/unregistration
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.analysisClients[client.AnalysisID] = append(h.analysisClients[client.AnalysisID], client)
			h.mutex.Unlock()

			h.logger.WithFields(logrus.Fields{
				"analysis_id":   client.AnalysisID,
				"total_clients": len(h.clients),
			}).Info("WebSocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)

				subscribers := h.analysisClients[client.AnalysisID]
				for i, c := range subscribers {
					if c == client {
						h.analysisClients[client.AnalysisID] = append(subscribers[:i], subscribers[i+1:]...)
						break
					}
				}
				if len(h.analysisClients[client.AnalysisID]) == 0 {
					delete(h.analysisClients, client.AnalysisID)
				}
			}
			h.mutex.Unlock()

			h.logger.WithFields(logrus.Fields{
				"analysis_id":   client.AnalysisID,
				"total_clients": len(h.clients),
			}).Info("WebSocket client disconnected")
		}
	}
}

// HandleWebSocket upgrades a connection subscribed to one analysis.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	analysisID := c.Param("request_id")
	if analysisID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing request ID"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		AnalysisID: analysisID,
		Conn:       conn,
		Send:       make(chan []byte, 256),
		Hub:        h,
	}

	client.Hub.register <- client

	go client.writePump()
	go client.readPump()
}

// BroadcastProgress sends a progress update to all subscribers of an analysis.
// Lookup and send happen under one read lock: unregistration closes Send under
// the write lock, so a client reachable here cannot have a closed channel.
func (h *Hub) BroadcastProgress(progress AnalysisProgress) {
	data, err := json.Marshal(progress)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal WebSocket message")
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for _, client := range h.analysisClients[progress.AnalysisID] {
		select {
		case client.Send <- data:
		default:
			// Slow subscriber; drop the update rather than block the engine.
		}
	}
}

// GetConnectionCount returns the total number of active connections
func (h *Hub) GetConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.WithError(err).Error("WebSocket error")
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.Hub.logger.WithError(err).Error("Failed to write WebSocket message")
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
