// Package web serves the receiver status over HTTP: JSON endpoints for the
// current snapshot, the satellite table and recent logs, plus a websocket
// stream of snapshots.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The UI is served from the same device; any origin on the LAN may read.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func Handler(status *Status, logs *LogBuffer, bc *Broadcaster) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", getOnly(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status.Snapshot(time.Now().UTC()))
	}))

	mux.HandleFunc("/api/satellites", getOnly(func(w http.ResponseWriter, r *http.Request) {
		src := status.source()
		if src == nil {
			http.Error(w, "receiver unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, src.Satellites())
	}))

	mux.HandleFunc("/api/antenna/report", getOnly(func(w http.ResponseWriter, r *http.Request) {
		rep := status.report.Load()
		if rep == nil {
			http.Error(w, "no antenna report", http.StatusNotFound)
			return
		}
		writeJSON(w, rep)
	}))

	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}

	mux.HandleFunc("/api/about", getOnly(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, about(time.Now()))
	}))

	if bc != nil {
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			serveWS(w, r, bc)
		})
	}

	mux.HandleFunc("/", getOnly(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		snap := status.Snapshot(time.Now().UTC())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>%s</title></head><body>", service)
		_, _ = fmt.Fprintf(w, "<h1>%s</h1>", service)
		_, _ = fmt.Fprintf(w, "<pre>driver=%s\nbus=%s\naddress=%s\nmode=%s\nticks=%d\nlast_tick_utc=%s</pre>",
			html.EscapeString(snap.Receiver.Driver), html.EscapeString(snap.Receiver.Bus),
			html.EscapeString(snap.Receiver.Address), html.EscapeString(snap.Receiver.Mode),
			snap.Ticks, snap.LastTickUTC,
		)
		if g := snap.GNSS; g != nil {
			_, _ = fmt.Fprintf(w, "<pre>fix=%s satellites=%d/%d hint=%s\n%s</pre>",
				g.Position.FixStatus, g.Satellites.Used, g.Satellites.Visible, g.Satellites.Hint,
				html.EscapeString(g.Satellites.Hint.Advice()))
		}
		_, _ = fmt.Fprintf(w, "<p>JSON: <a href=\"/api/status\">/api/status</a> <a href=\"/api/satellites\">/api/satellites</a> <a href=\"/api/logs?format=text\">/api/logs</a></p>")
		_, _ = fmt.Fprintf(w, "</body></html>")
	}))

	return mux
}

// serveWS streams every published snapshot as a JSON text message until the
// client goes away.
func serveWS(w http.ResponseWriter, r *http.Request, bc *Broadcaster) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	id, ch := bc.Subscribe(4)
	defer bc.Unsubscribe(id)

	// Reads only detect the close; clients have nothing to send.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("web: websocket read: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(s); err != nil {
				return
			}
		}
	}
}

func Serve(ctx context.Context, listenAddr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
