package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/guard"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/otel"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/service"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

const streamKeepalive = 30 * time.Second

// Subscription is one /stream client. Events are delivered only for tasks the
// actor can view, optionally narrowed to a single task.
type Subscription struct {
	actor  guard.Actor
	taskID string
	ch     chan service.Event
}

func (s *Subscription) wants(ev service.Event) bool {
	if s.taskID != "" && s.taskID != ev.TaskID {
		return false
	}
	return guard.CanView(s.actor, &models.Task{
		TaskID:         ev.TaskID,
		TeamID:         ev.TeamID,
		AssignedUserID: ev.AssignedUserID,
		CreatedByID:    ev.CreatedByID,
	})
}

// SSEHub delivers task change events to /stream subscribers. It implements
// service.Publisher.
type SSEHub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	dropped atomic.Uint64
}

func NewSSEHub() *SSEHub {
	return &SSEHub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers actor for events. An empty taskID means every task the
// actor can view.
func (h *SSEHub) Subscribe(actor guard.Actor, taskID string) *Subscription {
	s := &Subscription{actor: actor, taskID: taskID, ch: make(chan service.Event, models.DefaultSSEChannelBuffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	otel.AddSSEConnection()
	return s
}

func (h *SSEHub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.ch)
	otel.RemoveSSEConnection()
}

// Publish never blocks: a subscriber whose buffer is full misses the event
// and is expected to re-fetch.
func (h *SSEHub) Publish(ev service.Event) {
	otel.RecordSSEEvent(context.Background())
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if !s.wants(ev) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Dropped returns how many events were skipped for slow subscribers.
func (h *SSEHub) Dropped() uint64 {
	return h.dropped.Load()
}

// Handler serves GET /stream[?task=<id>]. Each event is written with its type
// as the SSE event name and the task version as its id.
func (h *SSEHub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		actor := actorFrom(r.Context())
		sub := h.Subscribe(actor, r.URL.Query().Get("task"))
		defer h.Unsubscribe(sub)
		slog.Debug("stream opened", "actor", actor.ID, "task_id", sub.taskID)

		_, _ = fmt.Fprintf(w, "event: connected\ndata: {\"actor\":%q}\n\n", actor.ID)
		flusher.Flush()

		keepalive := time.NewTicker(streamKeepalive)
		defer keepalive.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-keepalive.C:
				_, _ = fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
			case ev, ok := <-sub.ch:
				if !ok {
					return
				}
				if err := writeEvent(w, ev); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, ev service.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\nid: %s\ndata: %s\n\n", ev.Type, strconv.FormatInt(ev.Version, 10), b)
	return err
}
