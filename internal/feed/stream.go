package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mkofler/tickpoll/internal/model"
)

// StreamConfig holds provider-B websocket feed settings.
type StreamConfig struct {
	URL                string
	APIKey             string
	HandshakeTimeout   time.Duration
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
}

// DefaultStreamConfig returns sensible defaults for a feed URL.
func DefaultStreamConfig(url, apiKey string) StreamConfig {
	return StreamConfig{
		URL:                url,
		APIKey:             apiKey,
		HandshakeTimeout:   10 * time.Second,
		ReconnectBaseDelay: time.Second,
		ReconnectMaxDelay:  60 * time.Second,
	}
}

// StreamSource consumes the provider-B streaming feed and keeps the
// latest sample per symbol. FetchQuotes reads that cache, so polling
// workers see the stream through the same boundary as the REST feed.
type StreamSource struct {
	cfg    StreamConfig
	logger *slog.Logger

	mu         sync.RWMutex
	latest     map[string]model.QuoteSample
	subscribed map[string]bool

	conn    *websocket.Conn
	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStreamSource creates a streaming quote source.
func NewStreamSource(cfg StreamConfig, logger *slog.Logger) *StreamSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamSource{
		cfg:        cfg,
		logger:     logger,
		latest:     make(map[string]model.QuoteSample),
		subscribed: make(map[string]bool),
	}
}

// Start begins the connect/read/reconnect loop.
func (s *StreamSource) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.runLoop()

	s.logger.Info("stream source started", "url", s.cfg.URL)
	return nil
}

// Stop shuts the stream down.
func (s *StreamSource) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("stream source stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FetchQuotes returns the latest cached sample for each requested
// symbol. Symbols not yet seen on the stream are subscribed and simply
// absent from this call's result; the next iteration picks them up.
func (s *StreamSource) FetchQuotes(ctx context.Context, symbols []string) ([]model.QuoteSample, error) {
	if err := s.subscribe(symbols); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := make([]model.QuoteSample, 0, len(symbols))
	for _, sym := range symbols {
		if sample, ok := s.latest[sym]; ok {
			samples = append(samples, sample)
		}
	}
	return samples, nil
}

// subscribe registers symbols and, when connected, sends the subscribe
// frame for any new ones.
func (s *StreamSource) subscribe(symbols []string) error {
	s.mu.Lock()
	var added []string
	for _, sym := range symbols {
		if !s.subscribed[sym] {
			s.subscribed[sym] = true
			added = append(added, sym)
		}
	}
	conn := s.conn
	s.mu.Unlock()

	if len(added) == 0 || conn == nil {
		return nil
	}
	return s.sendSubscribe(conn, added)
}

func (s *StreamSource) sendSubscribe(conn *websocket.Conn, symbols []string) error {
	msg := map[string]any{"op": "subscribe", "symbols": symbols}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// runLoop maintains the connection, reconnecting with capped
// exponential backoff.
func (s *StreamSource) runLoop() {
	defer s.wg.Done()

	backoff := s.cfg.ReconnectBaseDelay

	for {
		if s.ctx.Err() != nil {
			return
		}

		if err := s.connect(); err != nil {
			s.logger.Warn("stream connect failed",
				"url", s.cfg.URL,
				"backoff", backoff,
				"error", err,
			)

			select {
			case <-s.ctx.Done():
				return
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > s.cfg.ReconnectMaxDelay {
				backoff = s.cfg.ReconnectMaxDelay
			}
			continue
		}

		backoff = s.cfg.ReconnectBaseDelay
		s.readLoop()
	}
}

func (s *StreamSource) connect() error {
	header := http.Header{}
	if s.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(s.ctx, s.cfg.URL, header)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	symbols := make([]string, 0, len(s.subscribed))
	for sym := range s.subscribed {
		symbols = append(symbols, sym)
	}
	s.mu.Unlock()

	if len(symbols) > 0 {
		if err := s.sendSubscribe(conn, symbols); err != nil {
			conn.Close()
			return err
		}
	}

	s.logger.Debug("stream connected", "url", s.cfg.URL, "symbols", len(symbols))
	return nil
}

// readLoop consumes frames until the connection drops.
func (s *StreamSource) readLoop() {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				s.logger.Warn("stream read failed", "error", err)
			}
			s.mu.Lock()
			s.conn = nil
			s.mu.Unlock()
			conn.Close()
			return
		}

		var sample model.QuoteSample
		if err := json.Unmarshal(data, &sample); err != nil {
			s.logger.Debug("discarding malformed stream frame", "error", err)
			continue
		}
		if sample.Symbol == "" {
			continue
		}

		s.mu.Lock()
		s.latest[sample.Symbol] = sample
		s.mu.Unlock()
	}
}
