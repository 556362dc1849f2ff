package api

import "net/http"

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats.Dashboard(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "Server error while fetching stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
