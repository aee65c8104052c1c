package web

import (
	"embed"
	"html/template"
	"io"

	"github.com/forcessl/forcessl/internal/plugin"
)

// templateFS holds the admin page templates.
//
//go:embed templates/*.html
var templateFS embed.FS

var adminTmpl = template.Must(template.ParseFS(templateFS, "templates/admin.html"))

// PluginStatus is one row of the admin page's plugin table.
type PluginStatus struct {
	Name    string
	Version string
	Active  bool
}

// AdminPage is the data rendered by RenderAdmin.
type AdminPage struct {
	Notices []plugin.Notice
	Plugins []PluginStatus
}

// RenderAdmin writes the admin page.
func RenderAdmin(w io.Writer, page AdminPage) error {
	return adminTmpl.Execute(w, page)
}
