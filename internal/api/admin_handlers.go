package api

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/forcessl/forcessl/internal/plugin"
	"github.com/forcessl/forcessl/internal/web"
)

// handleAdmin renders the plugins page with any admin notices.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	page := web.AdminPage{
		Notices: s.plugin.AdminNotices(),
		Plugins: []web.PluginStatus{
			{Name: s.rest.Name(), Version: s.rest.Version(), Active: s.rest.Loaded()},
			{Name: plugin.Name, Version: plugin.Version, Active: s.plugin.Satisfied()},
		},
	}

	var buf bytes.Buffer
	if err := web.RenderAdmin(&buf, page); err != nil {
		slog.Error("admin: failed to render page", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes()) //nolint:errcheck
}
