package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HTTP webhook size and rate constants.
const (
	maxBodyBytes        = 64 * 1024
	maxContentBytes     = 32 * 1024
	maxPendingResponses = 100
	maxRequestsPerMin   = 60
	responseWait        = 60 * time.Second
)

// HTTPConfig configures the HTTP webhook reference channel.
type HTTPConfig struct {
	Host string
	Port uint16

	// WebhookSecret, when set, is required on every request; a request
	// missing or mismatching it is rejected with 401.
	WebhookSecret string

	// UserID is the fixed user identity attributed to every message
	// this channel delivers; the webhook body's own user_id field (if
	// any) is accepted but ignored.
	UserID string
}

// HTTPChannel is the HTTP webhook reference adapter: POST /webhook
// accepts a message, GET /health reports liveness.
type HTTPChannel struct {
	BaseChannel

	config HTTPConfig

	mu  sync.RWMutex
	tx  chan<- IncomingMessage
	pending map[uuid.UUID]chan string

	rateMu      sync.Mutex
	windowStart time.Time
	requestCnt  uint32
}

// NewHTTPChannel builds an HTTPChannel from config. It does not start
// accepting requests until Start is called.
func NewHTTPChannel(config HTTPConfig) *HTTPChannel {
	return &HTTPChannel{
		config:  config,
		pending: make(map[uuid.UUID]chan string),
	}
}

// Name implements Channel.
func (c *HTTPChannel) Name() string { return "http" }

// Routes returns the channel's route fragment (for composition into a
// WebhookServer); before Start is called, POST /webhook responds 503.
func (c *HTTPChannel) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", c.handleHealth)
	mux.HandleFunc("POST /webhook", c.handleWebhook)
	return mux
}

// Addr returns the configured bind host and port.
func (c *HTTPChannel) Addr() (string, uint16) { return c.config.Host, c.config.Port }

// Start implements Channel. A webhook secret is required: an
// unauthenticated HTTP channel would accept messages from anyone who
// can reach the port.
func (c *HTTPChannel) Start(ctx context.Context) (MessageStream, error) {
	if c.config.WebhookSecret == "" {
		return nil, startupFailed("http", errMissingWebhookSecret)
	}

	ch := make(chan IncomingMessage, 256)
	c.mu.Lock()
	c.tx = ch
	c.mu.Unlock()

	return ch, nil
}

// Respond implements Channel: it delivers response to whichever
// waiter is blocked on msg's synchronous-response channel, if any.
func (c *HTTPChannel) Respond(ctx context.Context, msg IncomingMessage, response OutgoingResponse) error {
	c.mu.Lock()
	waiter, ok := c.pending[msg.ID]
	if ok {
		delete(c.pending, msg.ID)
	}
	c.mu.Unlock()

	if ok {
		waiter <- response.Content
	}
	return nil
}

// HealthCheck implements Channel.
func (c *HTTPChannel) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tx == nil {
		return healthCheckFailed("http")
	}
	return nil
}

// Shutdown implements Channel.
func (c *HTTPChannel) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx != nil {
		close(c.tx)
		c.tx = nil
	}
	return nil
}

type webhookRequest struct {
	UserID          string `json:"user_id,omitempty"`
	Content         string `json:"content"`
	ThreadID        string `json:"thread_id,omitempty"`
	Secret          string `json:"secret,omitempty"`
	WaitForResponse bool   `json:"wait_for_response,omitempty"`
}

type webhookResponse struct {
	MessageID uuid.UUID `json:"message_id"`
	Status    string    `json:"status"`
	Response  *string   `json:"response,omitempty"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Channel string `json:"channel"`
}

func (c *HTTPChannel) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Channel: "http"})
}

func (c *HTTPChannel) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !c.allowRequest() {
		writeJSON(w, http.StatusTooManyRequests, errResponse(uuid.Nil, "Rate limit exceeded"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse(uuid.Nil, "invalid JSON"))
		return
	}

	if c.config.WebhookSecret != "" {
		if req.Secret == "" {
			writeJSON(w, http.StatusUnauthorized, errResponse(uuid.Nil, "Webhook secret required"))
			return
		}
		if req.Secret != c.config.WebhookSecret {
			writeJSON(w, http.StatusUnauthorized, errResponse(uuid.Nil, "Invalid webhook secret"))
			return
		}
	}

	if len(req.Content) > maxContentBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errResponse(uuid.Nil, "Content too large"))
		return
	}

	metadata, _ := json.Marshal(map[string]any{"wait_for_response": req.WaitForResponse})
	msg := NewIncomingMessage("http", c.config.UserID, req.Content).WithMetadata(metadata)
	if req.ThreadID != "" {
		msg = msg.WithThread(req.ThreadID)
	}

	c.processMessage(w, msg, req.WaitForResponse)
}

func (c *HTTPChannel) processMessage(w http.ResponseWriter, msg IncomingMessage, waitForResponse bool) {
	var waiter chan string
	if waitForResponse {
		c.mu.Lock()
		if len(c.pending) >= maxPendingResponses {
			c.mu.Unlock()
			writeJSON(w, http.StatusTooManyRequests, errResponse(msg.ID, "Too many pending requests"))
			return
		}
		waiter = make(chan string, 1)
		c.pending[msg.ID] = waiter
		c.mu.Unlock()
	}

	c.mu.RLock()
	tx := c.tx
	c.mu.RUnlock()

	if tx == nil {
		c.clearPending(msg.ID)
		writeJSON(w, http.StatusServiceUnavailable, errResponse(msg.ID, "Channel not started"))
		return
	}

	select {
	case tx <- msg:
	default:
		c.clearPending(msg.ID)
		writeJSON(w, http.StatusInternalServerError, errResponse(msg.ID, "Channel closed"))
		return
	}

	if waiter == nil {
		writeJSON(w, http.StatusOK, webhookResponse{MessageID: msg.ID, Status: "accepted"})
		return
	}

	var response *string
	select {
	case content := <-waiter:
		response = &content
	case <-time.After(responseWait):
		timeout := "Response timeout"
		response = &timeout
	}
	c.clearPending(msg.ID)

	writeJSON(w, http.StatusOK, webhookResponse{MessageID: msg.ID, Status: "accepted", Response: response})
}

func (c *HTTPChannel) clearPending(id uuid.UUID) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *HTTPChannel) allowRequest() bool {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()
	now := time.Now()
	if c.windowStart.IsZero() || now.Sub(c.windowStart) >= time.Minute {
		c.windowStart = now
		c.requestCnt = 0
	}
	c.requestCnt++
	return c.requestCnt <= maxRequestsPerMin
}

func errResponse(id uuid.UUID, message string) webhookResponse {
	return webhookResponse{MessageID: id, Status: "error", Response: &message}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type httpChannelError string

func (e httpChannelError) Error() string { return string(e) }

const errMissingWebhookSecret = httpChannelError("HTTP webhook secret is required (set HTTP_WEBHOOK_SECRET)")

var _ Channel = (*HTTPChannel)(nil)
