package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/mapnav/navclient/internal/adapters/surface"
	"github.com/mapnav/navclient/internal/pkg/metrics"
)

// wsMessage is sent from a renderer to pick the channels it wants.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe" | "snapshot"
	Channel string `json:"channel"` // "shapes" | "notices" | "events"
}

// channelOf buckets a surface op into a renderer channel.
func channelOf(k surface.OpKind) string {
	switch k {
	case surface.OpNotice:
		return "notices"
	case surface.OpEvent:
		return "events"
	}
	return "shapes"
}

var knownChannels = map[string]bool{"shapes": true, "notices": true, "events": true}

// WebSocketHandler streams surface operations to a renderer. The first
// frame is a full snapshot; every later frame is one op in apply order.
// Renderers start on shapes and notices and may opt into events:
// {"action":"subscribe","channel":"events"}.
func WebSocketHandler(surf *surface.Surface) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("renderer connected", "remote", remoteAddr)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		channels := map[string]bool{"shapes": true, "notices": true}

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		wants := func(ch string) bool {
			mu.Lock()
			defer mu.Unlock()
			return channels[ch]
		}

		state, ops, cancel := surf.Subscribe(256)
		defer cancel()
		if err := writeJSON(map[string]interface{}{"type": "snapshot", "state": state}); err != nil {
			return
		}

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case op, ok := <-ops:
					if !ok {
						// Dropped for falling behind; the renderer reconnects.
						_ = writeJSON(map[string]string{"type": "resync"})
						mu.Lock()
						_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resync"))
						mu.Unlock()
						return
					}
					if !wants(channelOf(op.Kind)) {
						continue
					}
					if err := writeJSON(map[string]interface{}{"type": "op", "op": op}); err != nil {
						return
					}
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			if m.Action == "snapshot" {
				_ = writeJSON(map[string]interface{}{"type": "snapshot", "state": surf.Snapshot()})
				continue
			}
			if !knownChannels[m.Channel] {
				_ = writeJSON(map[string]string{"error": "unknown channel: " + m.Channel})
				continue
			}

			switch m.Action {
			case "subscribe":
				mu.Lock()
				channels[m.Channel] = true
				mu.Unlock()
				_ = writeJSON(map[string]string{"status": "subscribed", "channel": m.Channel})
			case "unsubscribe":
				mu.Lock()
				delete(channels, m.Channel)
				mu.Unlock()
				_ = writeJSON(map[string]string{"status": "unsubscribed", "channel": m.Channel})
			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		slog.Info("renderer disconnected", "remote", remoteAddr)
	}
}
