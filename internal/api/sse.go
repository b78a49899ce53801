package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// streamEvents handles GET /events: a server-sent events stream carrying the
// named events issueCreated, issueUpdated and noteAdded. There is no replay;
// a viewer only sees events published while it is connected.
func (s *Server) streamEvents(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	id, events := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				// Hub shut down.
				return nil
			}
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				log.Error().Err(err).Str("event", string(ev.Name)).Msg("failed to encode event payload")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
