// Package notify delivers finalized-service events to the sales automation
// webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"probikes/internal/core"
	"probikes/internal/logging"
	"probikes/pkg/domain"
)

// DefaultURL is the sales automation hook used when none is configured.
const DefaultURL = "https://hook.us2.make.com/bvpeibjono39q80kiarwcswn7cwwoa6c"

const (
	defaultMaxAttempts = 5
	defaultQueueSize   = 64
	defaultTimeout     = 10 * time.Second
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 10 * time.Minute
)

// Config tunes webhook delivery. Zero values take the defaults.
type Config struct {
	URL         string
	MaxAttempts int
	QueueSize   int
	// Timeout bounds a single HTTP attempt.
	Timeout   time.Duration
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	return c
}

// Product is one sold part.
type Product struct {
	Descripcion string  `json:"descripcion"`
	Precio      float64 `json:"precio"`
}

// Payload is the JSON body posted to the webhook.
type Payload struct {
	DNICliente        string    `json:"dni_cliente"`
	NombreCliente     string    `json:"nombre_cliente"`
	FechaFinalizacion string    `json:"fecha_finalizacion"`
	NombreProducto    string    `json:"nombre_producto"`
	Productos         []Product `json:"productos"`
	TotalService      float64   `json:"total_service"`
}

// BuildPayload maps a finalized service onto the webhook body.
func BuildPayload(e core.ServiceFinalized) Payload {
	p := Payload{
		DNICliente:        e.Client.DNI,
		NombreCliente:     e.Client.Name,
		FechaFinalizacion: domain.FormatTimestamp(e.FinalizedAt),
		Productos:         make([]Product, 0, len(e.Parts)),
		TotalService:      e.Service.TotalPrice,
	}
	if p.DNICliente == "" {
		p.DNICliente = "Sin DNI"
	}
	if p.NombreCliente == "" {
		p.NombreCliente = "Cliente"
	}
	names := make([]string, 0, len(e.Parts))
	for _, part := range e.Parts {
		names = append(names, part.Description)
		p.Productos = append(p.Productos, Product{Descripcion: part.Description, Precio: part.Price})
	}
	p.NombreProducto = strings.Join(names, ", ")
	return p
}

// Stats counts delivery outcomes since start.
type Stats struct {
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

// Option configures a Webhook.
type Option func(*Webhook)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(w *Webhook) { w.client = c }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(w *Webhook) { w.log = logging.OrNop(l) }
}

// Webhook is a core.Publisher that posts events from a bounded queue on its
// own goroutine, retrying with exponential backoff.
type Webhook struct {
	cfg    Config
	client *http.Client
	log    logging.Logger

	queue  chan Payload
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	sent, failed, dropped atomic.Int64
}

var _ core.Publisher = (*Webhook)(nil)

// NewWebhook starts the delivery goroutine. Call Close to stop it.
func NewWebhook(cfg Config, opts ...Option) *Webhook {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	w := &Webhook{
		cfg:    cfg,
		client: &http.Client{},
		log:    logging.Nop(),
		queue:  make(chan Payload, cfg.QueueSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With("component", "webhook")
	go w.loop()
	return w
}

// Publish enqueues e without blocking. Events are dropped with a warning when
// the queue is full or the notifier is closed.
func (w *Webhook) Publish(_ context.Context, e core.ServiceFinalized) {
	payload := BuildPayload(e)
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		w.log.Warn("webhook closed, event dropped", "service_id", e.Service.ID)
		return
	}
	select {
	case w.queue <- payload:
	default:
		w.dropped.Add(1)
		w.log.Warn("webhook queue full, event dropped", "service_id", e.Service.ID, "queue_size", w.cfg.QueueSize)
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
// When ctx ends first, pending retries are abandoned.
func (w *Webhook) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	select {
	case <-w.done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-w.done
		return ctx.Err()
	}
}

// Stats returns the delivery counters.
func (w *Webhook) Stats() Stats {
	return Stats{Sent: w.sent.Load(), Failed: w.failed.Load(), Dropped: w.dropped.Load()}
}

func (w *Webhook) loop() {
	defer close(w.done)
	for payload := range w.queue {
		if err := w.deliver(w.ctx, payload); err != nil {
			w.failed.Add(1)
			w.log.Error("webhook delivery failed", "client", payload.NombreCliente, "error", err)
			continue
		}
		w.sent.Add(1)
		w.log.Info("webhook delivered", "client", payload.NombreCliente, "products", len(payload.Productos))
	}
}

func (w *Webhook) backoff() retry.Backoff {
	b := retry.NewExponential(w.cfg.BaseDelay)
	b = retry.WithCappedDuration(w.cfg.MaxDelay, b)
	b = retry.WithJitterPercent(10, b)
	return retry.WithMaxRetries(uint64(w.cfg.MaxAttempts-1), b)
}

func (w *Webhook) deliver(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	attempt := 0
	return retry.Do(ctx, w.backoff(), func(ctx context.Context) error {
		attempt++
		err := w.post(ctx, body)
		var perm *permanentError
		if err == nil || errors.As(err, &perm) {
			return err
		}
		w.log.Warn("webhook attempt failed", "attempt", attempt, "max_attempts", w.cfg.MaxAttempts, "error", err)
		return retry.RetryableError(err)
	})
}

// permanentError stops the retry loop.
type permanentError struct {
	status int
	err    error
}

func (e *permanentError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("webhook rejected with status %d", e.status)
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return &permanentError{err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return &permanentError{status: resp.StatusCode}
	}
	return nil
}
