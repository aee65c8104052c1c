// Package restapi describes the JSON REST API subsystem: its identity, the
// namespaces and routes it serves, and whether it is loaded.
package restapi

import "net/http"

// Identity of the REST API subsystem.
const (
	Name    = "JSON REST API"
	Version = "1.2.0"
)

// Prefix is the path every REST API route lives under.
const Prefix = "/wp-json"

// Namespaces served under Prefix.
const (
	NamespaceCore = "wp/v2"
	NamespaceAuth = "jwt-auth/v1"
)

// Route is one entry of the API index.
type Route struct {
	Path      string
	Namespace string
	Methods   []string
}

// routes is the static route table reported by the index endpoint.
var routes = []Route{
	{Path: "/", Namespace: "", Methods: []string{http.MethodGet}},
	{Path: "/" + NamespaceCore + "/posts", Namespace: NamespaceCore, Methods: []string{http.MethodGet, http.MethodPost}},
	{Path: "/" + NamespaceCore + "/posts/(?P<id>[\\d]+)", Namespace: NamespaceCore, Methods: []string{http.MethodGet, http.MethodDelete}},
	{Path: "/" + NamespaceAuth + "/token", Namespace: NamespaceAuth, Methods: []string{http.MethodPost}},
}

// API is the REST API subsystem's presence signal.
type API struct {
	loaded bool
}

// New returns the subsystem descriptor. loaded is false when the operator
// turned the REST API off.
func New(loaded bool) *API {
	return &API{loaded: loaded}
}

func (a *API) Name() string    { return Name }
func (a *API) Version() string { return Version }

// Loaded reports whether the REST API routes are mounted.
func (a *API) Loaded() bool {
	return a != nil && a.loaded
}

// Namespaces returns the namespaces served by the API.
func (a *API) Namespaces() []string {
	return []string{NamespaceCore, NamespaceAuth}
}

// Routes returns a copy of the route table.
func (a *API) Routes() []Route {
	out := make([]Route, len(routes))
	copy(out, routes)
	return out
}
