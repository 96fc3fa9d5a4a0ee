package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"turfhub/pkg/realtime"
)

const streamHeartbeat = 25 * time.Second

// streamEvents relays a subscription as server-sent events until the client
// goes away or the subscription ends.
func streamEvents(w http.ResponseWriter, r *http.Request, sub realtime.Subscription) {
	defer sub.Close()
	rc := http.NewResponseController(w)
	// the server-wide write timeout would cut long-lived streams
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		slog.Debug("clear write deadline failed", "err", err)
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.Warn("streaming unsupported", "path", r.URL.Path, "err", err)
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case env, ok := <-sub.C():
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Type, env.Data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
