package templates

import (
	"context"
	_ "embed"
	"html/template"
	"io"

	"github.com/a-h/templ"
)

//go:embed dashboard.html
var dashboardHTML string

var dashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardHTML))

// Page carries the values the dashboard page is rendered with.
type Page struct {
	Title          string
	DefaultCountry string
	DefaultHorizon int
	MinHorizon     int
	MaxHorizon     int
	UploadPrompt   string
}

// Dashboard renders the full dashboard page. Rendering is skipped once ctx is
// done.
func Dashboard(page Page) templ.Component {
	component := templ.FromGoHTML(dashboardTemplate, page)
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return component.Render(ctx, w)
	})
}
