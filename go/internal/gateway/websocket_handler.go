package gateway

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for auction connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	bids              BidSink
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, bids BidSink) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		bids:              bids,
	}
}

// HandleAuctionConnection handles WebSocket connections for the auction room
func (h *WebSocketHandler) HandleAuctionConnection(w http.ResponseWriter, r *http.Request) {
	// Bidder identity comes from a query parameter; in production this
	// would come from a session or token.
	bidderID := r.URL.Query().Get("user_id")
	if bidderID == "" {
		bidderID = "guest-" + uuid.New().String()[:8]
	}

	if err := h.connectionManager.UpgradeConnection(w, r, bidderID, h.bids); err != nil {
		log.Error().
			Err(err).
			Str("bidder_id", bidderID).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}

	// Connection is now handled by the connection manager
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"total_connections":%d}`, h.connectionManager.ConnectionCount())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/auction", h.HandleAuctionConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
