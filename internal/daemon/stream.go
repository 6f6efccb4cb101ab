package daemon

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"vmigrate/internal/stream"

	"github.com/labstack/echo/v4"
)

// handleStreamJob is the live stream gateway for one job. It subscribes
// before reading history so no event can fall between replay and live
// forwarding, replays the full log plus current progress, then forwards live
// events in executor order. Replayed events are deduplicated against the
// live channel by sequence number and progress value. The stream ends with
// exactly one done event carrying the terminal status; an observer attaching
// after completion sees the same history a live observer saw.
func (s *Server) handleStreamJob(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	if _, err := s.jobs.GetByID(id); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	subID, events := s.hub.Subscribe(id)
	defer s.hub.Unsubscribe(id, subID)

	// Status is read before history. The executor appends the final log line
	// before flipping the row terminal, so a terminal status here means the
	// subsequent read returns the whole log; a non-terminal one means the
	// subscription above carries whatever is still missing.
	job, err := s.jobs.GetByID(id)
	if err != nil {
		return err
	}

	lines, err := s.logs.ReadAll(id)
	if err != nil {
		return err
	}

	lastSeq := -1
	for _, line := range lines {
		writeSSE(res, "", line.Message)
		lastSeq = line.Seq
	}

	lastProgress := job.Progress
	writeSSE(res, "progress", strconv.Itoa(job.Progress))
	res.Flush()

	if job.Status.Terminal() {
		writeSSE(res, "done", string(job.Status))
		res.Flush()
		return nil
	}

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}

			switch ev.Type {
			case stream.EventLog:
				if ev.Seq <= lastSeq {
					continue
				}
				lastSeq = ev.Seq
				writeSSE(res, "", ev.Message)

			case stream.EventProgress:
				if ev.Progress <= lastProgress {
					continue
				}
				lastProgress = ev.Progress
				writeSSE(res, "progress", strconv.Itoa(ev.Progress))

			case stream.EventDone:
				writeSSE(res, "done", ev.Message)
				res.Flush()
				return nil
			}

			res.Flush()
		}
	}
}

func writeSSE(w io.Writer, event, data string) {
	if event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", event)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}
