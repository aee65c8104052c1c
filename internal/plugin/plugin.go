// Package plugin wires SSL enforcement into the REST API when, and only
// when, the REST API is loaded.
package plugin

import (
	"html/template"
	"log/slog"

	"github.com/forcessl/forcessl/internal/api/middleware"
	"github.com/forcessl/forcessl/internal/forcessl"
	"github.com/go-chi/chi/v5"
)

// Name and Version identify this plugin in logs and on the admin page.
const (
	Name    = "JSON REST API Force SSL"
	Version = "0.1.0"
)

// requiredDependency is the display name of the subsystem this plugin needs.
const requiredDependency = "JSON REST API"

// Dependency is the presence signal of the REST API subsystem.
type Dependency interface {
	Name() string
	Version() string
	Loaded() bool
}

// Notice is a message shown on the admin page. Class is the CSS class of the
// notice box ("error", "warning", "info").
type Notice struct {
	Class   string
	Message template.HTML
}

// Plugin decides once, at construction, whether SSL enforcement can be
// installed, and installs it on request.
type Plugin struct {
	policy    *forcessl.Policy
	dep       Dependency
	satisfied bool
}

// New checks dep and returns a Plugin. A nil dep counts as not loaded.
func New(dep Dependency, policy *forcessl.Policy) *Plugin {
	p := &Plugin{
		policy:    policy,
		dep:       dep,
		satisfied: dep != nil && dep.Loaded(),
	}

	if p.satisfied {
		slog.Info("force ssl enabled",
			"plugin_version", Version,
			"dependency", dep.Name(),
			"dependency_version", dep.Version(),
		)
	} else {
		slog.Warn("force ssl disabled, dependency not loaded",
			"plugin_version", Version,
			"dependency", requiredDependency,
		)
	}
	return p
}

// Satisfied reports whether the REST API was loaded at startup.
func (p *Plugin) Satisfied() bool {
	return p.satisfied
}

// Policy returns the policy used by the installed filter.
func (p *Plugin) Policy() *forcessl.Policy {
	return p.policy
}

// Register installs the SSL filter as the next middleware of r, which must
// be the REST API's route group. It does nothing and returns false when the
// dependency is missing.
func (p *Plugin) Register(r chi.Router) bool {
	if !p.satisfied {
		return false
	}
	r.Use(middleware.ForceSSL(p.policy))
	return true
}

// AdminNotices returns the notices to show on the admin page.
func (p *Plugin) AdminNotices() []Notice {
	if p.satisfied {
		return nil
	}
	return []Notice{{
		Class: "error",
		Message: template.HTML("The <strong>" + template.HTMLEscapeString(Name) +
			"</strong> plugin requires the <strong>" + template.HTMLEscapeString(requiredDependency) +
			"</strong> plugin to be installed and activated."),
	}}
}
