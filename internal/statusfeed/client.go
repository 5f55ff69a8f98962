package statusfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// URL turns a listen address such as "127.0.0.1:7717" into the feed URL.
func URL(addr string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return (&url.URL{Scheme: "ws", Host: addr, Path: Path}).String()
}

// Watch connects to a feed and calls handle for every message until ctx is
// cancelled or the server goes away.
func Watch(ctx context.Context, feedURL string, handle func(Message)) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, feedURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to status feed: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("status feed read failed: %w", err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		handle(msg)
	}
}
