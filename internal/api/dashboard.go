package api

import (
	"net/http"

	"github.com/Priya8975/webhook-ingest/internal/observe"
	ws "github.com/Priya8975/webhook-ingest/internal/websocket"
)

type DashboardHandler struct {
	aggregator *observe.Aggregator
	hub        *ws.Hub
	sink       *observe.Sink
}

// NewDashboardHandler wires the metrics endpoint; sink may be nil.
func NewDashboardHandler(agg *observe.Aggregator, hub *ws.Hub, sink *observe.Sink) *DashboardHandler {
	return &DashboardHandler{aggregator: agg, hub: hub, sink: sink}
}

type metricsResponse struct {
	observe.Snapshot
	WebSocketClients int   `json:"websocket_clients"`
	SinkPublished    int64 `json:"sink_published"`
	SinkDropped      int64 `json:"sink_dropped"`
}

// Metrics returns the running webhook totals for the dashboard.
func (h *DashboardHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	resp := metricsResponse{Snapshot: h.aggregator.Snapshot()}
	if h.hub != nil {
		resp.WebSocketClients = h.hub.ClientCount()
	}
	if h.sink != nil {
		resp.SinkPublished = h.sink.Published()
		resp.SinkDropped = h.sink.Dropped()
	}
	respondJSON(w, http.StatusOK, resp)
}
