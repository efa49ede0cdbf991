package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-uplink/internal/journal"
)

// handleListJournal returns journal entries, newest first.
//
// Query parameters:
//   - source: link, session or producer
//   - kind: event kind, e.g. connected, disconnected, published
//   - since: RFC 3339 timestamp
//   - limit: max results (default 50, max 500)
//   - offset: pagination offset
func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "journal not configured")
		return
	}

	q := r.URL.Query()
	filter := journal.Filter{
		Source: journal.Source(q.Get("source")),
		Kind:   q.Get("kind"),
	}

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = t
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, name+" must be an integer")
			return
		}
		*dst = n
	}

	result, err := s.journal.List(r.Context(), filter)
	if err != nil {
		if errors.Is(err, journal.ErrInvalidSource) {
			writeBadRequest(w, "source must be one of link, session, producer")
			return
		}
		s.logger.Error("failed to list journal", "error", err)
		writeInternalError(w, "failed to list journal")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
