package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/classbook/internal/liveevents"
	"github.com/smallbiznis/classbook/internal/recurrence"
)

const sessionEventHeartbeat = 15 * time.Second

// StreamSessionEvents pushes occupancy changes of one session as server-sent
// events. The first frame is a snapshot of the current summary.
func (s *Server) StreamSessionEvents(c *gin.Context) {
	if s.liveEvents == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	key := strings.TrimSpace(c.Param("key"))
	date, classID, err := recurrence.ParseSessionKey(key)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("session_key", key)

	summary, err := s.bookingSvc.GetSessionSummary(c.Request.Context(), classID, recurrence.FormatDate(date))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	subscription, backlog, err := s.liveEvents.Subscribe(key)
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	defer subscription.Close()

	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if _, err := io.WriteString(writer, "retry: 2000\n\n"); err != nil {
		return
	}
	snapshot := liveevents.Event{
		Type:        "snapshot",
		SessionKey:  key,
		AttendCount: summary.AttendCount,
		WaitCount:   summary.WaitCount,
		Capacity:    summary.Capacity,
		OccurredAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := writeSessionEvent(writer, snapshot); err != nil {
		return
	}
	for _, event := range backlog {
		if err := writeSessionEvent(writer, event); err != nil {
			return
		}
	}
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(sessionEventHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-subscription.Events():
			if !ok {
				return
			}
			if err := writeSessionEvent(writer, event); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSessionEvent(writer io.Writer, event liveevents.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(writer, "event: %s\ndata: %s\n\n", event.Type, payload)
	return err
}
