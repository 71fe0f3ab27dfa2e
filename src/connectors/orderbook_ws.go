package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

// ErrBookStale is returned when the stream has not delivered a snapshot for
// longer than the configured staleness bound. Consumers must treat it like
// any other provider failure: null the section, never block.
var ErrBookStale = errors.New("order book snapshot is stale")

// OrderBookStream consumes the aggregator's depth stream and keeps the latest
// snapshot per symbol in memory. Readers never touch the network.
type OrderBookStream struct {
	url      string
	maxStale time.Duration

	mu    sync.RWMutex
	books map[string]bookEntry
}

type bookEntry struct {
	book       OrderBook
	receivedAt time.Time
}

func NewOrderBookStream(url string, maxStale time.Duration) *OrderBookStream {
	if maxStale <= 0 {
		maxStale = 30 * time.Second
	}
	return &OrderBookStream{
		url:      url,
		maxStale: maxStale,
		books:    make(map[string]bookEntry),
	}
}

// Run consumes the stream until ctx is cancelled, redialing on failure.
func (s *OrderBookStream) Run(ctx context.Context) error {
	if s.url == "" {
		return errors.New("order book ws url not configured")
	}

	for {
		if err := s.consumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.WithError(err).Warn("Order book stream dropped, reconnecting")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *OrderBookStream) consumeOnce(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout:  15 * time.Second,
		EnableCompression: true,
		Proxy:             http.ProxyFromEnvironment,
	}

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("ws dial failed: %w", err)
	}
	defer conn.Close()

	logger.WithField("url", s.url).Info("Order book stream connected")

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("ws read failed: %w", err)
		}

		var book OrderBook
		if err := json.Unmarshal(msg, &book); err != nil {
			logger.WithError(err).Debug("Skipping unparseable order book frame")
			continue
		}
		if book.Symbol == "" {
			continue
		}

		s.mu.Lock()
		s.books[book.Symbol] = bookEntry{book: book, receivedAt: time.Now()}
		s.mu.Unlock()
	}
}

// Latest returns the last snapshot for a symbol, or ErrBookStale when the
// stream has no fresh data for it.
func (s *OrderBookStream) Latest(symbol string) (*OrderBook, error) {
	s.mu.RLock()
	entry, ok := s.books[symbol]
	s.mu.RUnlock()

	if !ok || time.Since(entry.receivedAt) > s.maxStale {
		return nil, ErrBookStale
	}

	book := entry.book
	return &book, nil
}
