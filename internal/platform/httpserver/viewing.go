package httpserver

import (
	"net/http"
)

// handleViewingSession godoc
// @Summary Open a viewing session
// @Description Upgrades to a websocket carrying mount/visible/hidden/playback_ended/unmount events in and item_state/notification/balance messages out. Browsers may pass the bearer token as access_token.
// @Tags viewing
// @Security BearerAuth
// @Param access_token query string false "Bearer token for clients that cannot set headers"
// @Success 101
// @Failure 401 {object} map[string]string
// @Router /v1/viewing/session [get]
func (s *Server) handleViewingSession(w http.ResponseWriter, r *http.Request) {
	if token := r.URL.Query().Get("access_token"); token != "" && r.Header.Get("Authorization") == "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("viewing session upgrade failed",
			"event", "http_viewing_session_upgrade_failed",
			"module", moduleName,
			"layer", "platform",
			"viewer_id", principal.UserID,
			"error", err.Error(),
		)
		return
	}
	if s.metrics != nil {
		s.metrics.SessionOpened()
		defer s.metrics.SessionClosed()
	}
	s.viewing.ServeSession(r.Context(), conn, principal.UserID)
}
