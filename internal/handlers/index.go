package handlers

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
)

//go:embed templates/*.html
var templatesFS embed.FS

// NewViews returns the view engine for the service's HTML pages.
func NewViews() *html.Engine {
	pages, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		panic(err)
	}
	return html.NewFileSystem(http.FS(pages), ".html")
}

type indexView struct {
	Title       string
	Strategy    string
	Ready       bool
	MaxUploadMB int
}

// HandleIndex renders the landing page with the upload form.
func (svc *ConvertService) HandleIndex(c *fiber.Ctx) error {
	return c.Render("index", indexView{
		Title:       "Office to PDF",
		Strategy:    svc.Converter.StrategyName(),
		Ready:       svc.Converter.Available(),
		MaxUploadMB: svc.Config.Limits.MaxUploadBytes / (1024 * 1024),
	})
}
