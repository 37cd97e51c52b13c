// Package handlers provides HTTP request handlers for the Reconnoiter API.
// This file implements the WebSocket endpoint that runs one recon operation
// and streams its progress events followed by the final result.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anstrom/reconnoiter/internal/api/middleware"
	"github.com/anstrom/reconnoiter/internal/errors"
	"github.com/anstrom/reconnoiter/internal/logging"
	"github.com/anstrom/reconnoiter/internal/recon"
)

const (
	// WebSocket configuration constants.
	writeWait       = 10 * time.Second                                   // Time allowed to write a message to the peer
	pongWait        = 60 * time.Second                                   // Time to read next pong message from peer
	pingPeriodRatio = 0.9                                                // Ratio of pongWait for pingPeriod
	pingPeriod      = time.Duration(float64(pongWait) * pingPeriodRatio) // Send pings to peer (must be < pongWait)
	maxMessageSize  = 1 << 20                                            // Maximum request size, wordlists included
	bufferSize      = 256                                                // Size of the outbound event buffer
)

// Message types sent to the client.
const (
	MessageAccepted = "accepted"
	MessageEvent    = "event"
	MessageResult   = "result"
	MessageError    = "error"
)

// Stream kinds.
const (
	KindScan       = "scan"
	KindSubdomains = "subdomains"
	KindSweep      = "sweep"
)

// StreamRequest is the single message a client sends after connecting.
type StreamRequest struct {
	Kind     string   `json:"kind" validate:"oneof=scan subdomains sweep"`
	Target   string   `json:"target" validate:"required,max=2048"`
	Ports    []int    `json:"ports,omitempty" validate:"omitempty,max=4096,dive,min=1,max=65535"`
	Wordlist []string `json:"wordlist,omitempty" validate:"omitempty,max=100000,dive,required,max=63"`
}

// WebSocketMessage represents a WebSocket message structure.
type WebSocketMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// StreamHandler serves GET /ws.
type StreamHandler struct {
	recon    Recon
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a stream handler. With no allowed origins the
// upgrader only accepts same-origin requests; "*" accepts any origin.
func NewStreamHandler(r Recon, allowedOrigins []string, logger *logging.Logger) *StreamHandler {
	h := &StreamHandler{
		recon:  r,
		logger: logger.WithFields("handler", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(req *http.Request) bool {
			origin := req.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		}
	}
	return h
}

// Stream upgrades the connection, reads one StreamRequest, runs it and
// streams events until the result is sent. Closing the socket cancels the
// operation.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)
	logger := h.logger.WithFields("request_id", requestID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		logger.Debug("Failed to upgrade WebSocket connection", "error", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debug("Error closing WebSocket connection", "error", err)
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Error("Failed to set read deadline", "error", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	req, err := readStreamRequest(conn)
	if err != nil {
		h.write(conn, logger, h.errorMessage(r.Context(), err, requestID))
		h.close(conn, websocket.CloseUnsupportedData, "invalid request")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	logger.Info("WebSocket stream started", "kind", req.Kind, "target", req.Target)
	if !h.write(conn, logger, WebSocketMessage{Type: MessageAccepted, Timestamp: time.Now().UTC(), Data: req, RequestID: requestID}) {
		return
	}

	go h.readPump(conn, cancel, logger)

	events := make(chan recon.Event, bufferSize)
	sink := recon.EventSinkFunc(func(e recon.Event) {
		select {
		case events <- e:
		case <-ctx.Done():
		}
	})

	type outcome struct {
		data any
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		data, err := h.run(recon.WithEventSink(ctx, sink), req)
		done <- outcome{data, err}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e := <-events:
			if !h.write(conn, logger, eventMessage(e, requestID)) {
				return
			}

		case res := <-done:
			// The operation has returned, so every event it emitted is buffered.
			for drained := false; !drained; {
				select {
				case e := <-events:
					if !h.write(conn, logger, eventMessage(e, requestID)) {
						return
					}
				default:
					drained = true
				}
			}

			msg := WebSocketMessage{Type: MessageResult, Timestamp: time.Now().UTC(), Data: res.data, RequestID: requestID}
			if res.err != nil {
				msg = h.errorMessage(ctx, res.err, requestID)
				logger.Warn("WebSocket stream failed", "kind", req.Kind, "target", req.Target, "error", res.err)
			} else {
				logger.Info("WebSocket stream completed", "kind", req.Kind, "target", req.Target)
			}
			if h.write(conn, logger, msg) {
				h.close(conn, websocket.CloseNormalClosure, "done")
			}
			return

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Debug("Ping failed, closing connection", "error", err)
				return
			}
		}
	}
}

func readStreamRequest(conn *websocket.Conn) (StreamRequest, error) {
	var req StreamRequest
	_, data, err := conn.ReadMessage()
	if err != nil {
		return req, errors.WrapScanError(errors.CodeValidation, "failed to read stream request", err)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, errors.WrapScanError(errors.CodeValidation, "invalid JSON: "+err.Error(), err)
	}
	return req, validateRequest(&req)
}

// run executes the requested operation and shapes its result like the
// matching REST endpoint.
func (h *StreamHandler) run(ctx context.Context, req StreamRequest) (any, error) {
	start := time.Now()
	switch req.Kind {
	case KindScan:
		result, err := h.recon.ScanTargetPorts(ctx, req.Target, req.Ports)
		if err != nil {
			return nil, err
		}
		return ScanResponse{Result: result, Summary: result.Summary()}, nil
	case KindSubdomains:
		found, err := h.recon.DiscoverSubdomains(ctx, req.Target, req.Wordlist)
		if err != nil {
			return nil, err
		}
		return SubdomainResponse{
			Domain:     req.Target,
			Subdomains: nonNil(found),
			Count:      len(found),
			Duration:   recon.Duration(time.Since(start)),
		}, nil
	case KindSweep:
		live, err := h.recon.PingSweep(ctx, req.Target)
		if err != nil {
			return nil, err
		}
		return SweepResponse{
			Network:   req.Target,
			LiveHosts: nonNil(live),
			Count:     len(live),
			Duration:  recon.Duration(time.Since(start)),
		}, nil
	default:
		return nil, errors.NewScanError(errors.CodeValidation, "unknown stream kind: "+req.Kind)
	}
}

// readPump keeps control frames flowing and cancels the operation once the
// client goes away. Further data messages are ignored.
func (h *StreamHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc, logger *logging.Logger) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket unexpected close", "error", err)
			}
			return
		}
	}
}

func (h *StreamHandler) write(conn *websocket.Conn, logger *logging.Logger, msg WebSocketMessage) bool {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		logger.Debug("Failed to set write deadline", "error", err)
		return false
	}
	if err := conn.WriteJSON(msg); err != nil {
		logger.Debug("WebSocket write failed", "type", msg.Type, "error", err)
		return false
	}
	return true
}

func (h *StreamHandler) close(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(writeWait))
}

func (h *StreamHandler) errorMessage(ctx context.Context, err error, requestID string) WebSocketMessage {
	status := StatusForError(ctx, err)
	return WebSocketMessage{
		Type:      MessageError,
		Timestamp: time.Now().UTC(),
		Data: ErrorResponse{
			Error:     http.StatusText(status),
			Code:      string(errors.GetCode(err)),
			Message:   err.Error(),
			Timestamp: time.Now().UTC(),
			RequestID: requestID,
		},
		RequestID: requestID,
	}
}

func eventMessage(e recon.Event, requestID string) WebSocketMessage {
	return WebSocketMessage{Type: MessageEvent, Timestamp: e.Timestamp, Data: e, RequestID: requestID}
}
