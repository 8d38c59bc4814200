package web

import (
	"embed"
	"html/template"
	"io"

	"pricewatch/pkg/analyze"
)

//go:embed templates
var templatesFs embed.FS

type ReportContext struct {
	Title  string
	Report *analyze.Report
}

func (c ReportContext) FormattedGeneratedAt() string {
	return c.Report.GeneratedAt.Format("2006-01-02T15:04:05 MST")
}

func RenderReport(w io.Writer, c ReportContext) error {
	t, err := template.ParseFS(templatesFs, "templates/report.html.tpl")
	if err != nil {
		return err
	}
	return t.Execute(w, c)
}
