package api

import (
	"net/http"
)

// indexRoute is one entry of the index's route map.
type indexRoute struct {
	Namespace string   `json:"namespace"`
	Methods   []string `json:"methods"`
}

// indexResponse describes the REST API to clients.
type indexResponse struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	URL         string                `json:"url"`
	Namespaces  []string              `json:"namespaces"`
	Routes      map[string]indexRoute `json:"routes"`
}

// handleIndex returns the API index.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	routes := make(map[string]indexRoute)
	for _, rt := range s.rest.Routes() {
		routes[rt.Path] = indexRoute{Namespace: rt.Namespace, Methods: rt.Methods}
	}

	writeJSON(w, http.StatusOK, indexResponse{
		Name:        "forcessl",
		Description: "JSON REST API served over HTTPS only",
		URL:         s.siteURL(r),
		Namespaces:  s.rest.Namespaces(),
		Routes:      routes,
	})
}
