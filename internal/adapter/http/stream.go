package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
	"github.com/couchcryptid/lightning-overlay-service/internal/pipeline"
)

const (
	msgUnknownProduct = "invalid product specified."
	msgMissingParams  = "invalid request: missing required parameters."
)

var errMissingParams = errors.New("missing required parameters")

// frame is the JSON payload of one server-sent event.
type frame struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Done     bool   `json:"done,omitempty"`
	Error    bool   `json:"error,omitempty"`
	URL      string `json:"url,omitempty"`
	Type     string `json:"type,omitempty"`
}

// frameFor converts a pipeline event to its wire form. Successful results are
// resolved to a URL under /static/.
func frameFor(ev domain.Event) frame {
	f := frame{Status: ev.Message(), Progress: ev.Percent()}
	switch e := ev.(type) {
	case domain.Failed:
		f.Done, f.Error = true, true
	case domain.Succeeded:
		f.Done = true
		if e.ResultRef != "" {
			f.URL = "/static/" + e.ResultRef
			f.Type = "image"
		}
	}
	return f
}

func errorFrame(status string) frame {
	return frame{Status: status, Progress: 100, Done: true, Error: true}
}

// handleStream validates the query, then streams the run's events until the
// terminal event or a client disconnect.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	req, err := parseStreamRequest(r)
	switch {
	case errors.Is(err, domain.ErrUnknownProduct):
		s.writeFrame(w, errorFrame(msgUnknownProduct))
		return
	case errors.Is(err, errMissingParams):
		s.writeFrame(w, errorFrame(msgMissingParams))
		return
	case err != nil:
		s.writeFrame(w, errorFrame("invalid request: "+err.Error()))
		return
	}

	done := false
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("stream handler panic", "panic", rec, "stack", string(debug.Stack()))
			if !done {
				s.writeFrame(w, errorFrame(pipeline.MsgUnexpected))
			}
		}
	}()

	for ev := range s.opts.Generator.Run(r.Context(), req) {
		if err := s.writeFrame(w, frameFor(ev)); err != nil {
			s.logger.Debug("client went away", "error", err)
			return
		}
		done = domain.IsTerminal(ev)
	}
}

// writeFrame writes one "data: {json}\n\n" event and flushes it.
func (s *Server) writeFrame(w http.ResponseWriter, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return http.NewResponseController(w).Flush()
}

func parseStreamRequest(r *http.Request) (domain.Request, error) {
	q := r.URL.Query()
	product, country := q.Get("product"), q.Get("country")
	if product == "" || country == "" || q.Get("year") == "" || q.Get("month") == "" || q.Get("day") == "" {
		return domain.Request{}, errMissingParams
	}

	var parts [3]int
	for i, key := range []string{"year", "month", "day"} {
		n, err := strconv.Atoi(q.Get(key))
		if err != nil {
			return domain.Request{}, fmt.Errorf("%s must be an integer, got %q", key, q.Get(key))
		}
		parts[i] = n
	}
	return domain.ParseRequest(product, country, parts[0], parts[1], parts[2])
}
