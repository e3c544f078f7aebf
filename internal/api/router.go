// Package api implements the Query API: the public HTTP surface over
// the Event Log and the SSE Hub, using vanilla net/http (Go 1.22+ mux).
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/neuwcodebox/disaster-feed/internal/model"
	"github.com/neuwcodebox/disaster-feed/internal/sse"
	"github.com/neuwcodebox/disaster-feed/internal/store"
)

const heartbeatInterval = 15 * time.Second

// Deps holds every dependency the HTTP surface needs.
type Deps struct {
	EventLog store.EventLog
	Hub      *sse.Hub
	CORS     bool
}

// New builds the application HTTP handler.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", index)
	mux.HandleFunc("GET /api/health/ping", ping)
	mux.HandleFunc("GET /events", listEvents(d))
	mux.HandleFunc("GET /events/stream", streamEvents(d))

	var h http.Handler = mux
	if d.CORS {
		h = withCORS(h)
	}
	return h
}

func index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Running"))
}

func ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"timestamp": time.Now().UnixMilli(),
	})
}

func listEvents(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseListFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		events, err := d.EventLog.List(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, toDTOs(events))
	}
}

func parseListFilter(r *http.Request) (model.ListFilter, error) {
	q := r.URL.Query()

	limit := 50
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return model.ListFilter{}, fmt.Errorf("limit must be a positive integer")
		}
		if n > 200 {
			n = 200
		}
		limit = n
	}

	filter := model.ListFilter{Limit: limit}

	if raw := q.Get("kind"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return model.ListFilter{}, fmt.Errorf("kind must be an integer")
		}
		k := model.Kind(n)
		if !k.Valid() {
			return model.ListFilter{}, fmt.Errorf("kind is not a recognized value")
		}
		filter.Kind = &k
	}

	if raw := q.Get("source"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return model.ListFilter{}, fmt.Errorf("source must be an integer")
		}
		s := model.Source(n)
		if !s.Valid() {
			return model.ListFilter{}, fmt.Errorf("source is not a recognized value")
		}
		filter.Source = &s
	}

	return filter, nil
}

func streamEvents(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		var since *time.Time
		if raw := r.URL.Query().Get("since"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "since must be an ISO-8601 datetime")
				return
			}
			since = &t
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		client := d.Hub.AddClient()
		defer d.Hub.RemoveClient(client)

		if err := d.Hub.CatchUp(r.Context(), since, func(e *model.Event) error {
			return writeSSEEvent(w, flusher, e)
		}); err != nil {
			return
		}

		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case e, ok := <-client.Events:
				if !ok {
					return
				}
				if err := writeSSEEvent(w, flusher, e); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := fmt.Fprint(w, "event: ping\ndata: keep-alive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, e *model.Event) error {
	dto := toDTO(e)
	data, err := json.Marshal(dto)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %s\ndata: %s\n\n", e.ID, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
