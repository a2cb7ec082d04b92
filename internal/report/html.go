package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed report.html.tmpl
var htmlTemplate string

var page = template.Must(template.New("report").Funcs(template.FuncMap{
	"seconds": func(t *float64) string {
		if t == nil {
			return ""
		}
		return fmt.Sprintf("%.2fs", *t)
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}).Parse(htmlTemplate))

// HTML writes doc as a standalone HTML page: one table row per reference
// word with its timing, expected and predicted IPA and the non-match ops,
// followed by the rule hits.
func HTML(w io.Writer, doc *Document) error {
	if err := page.Execute(w, doc); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}
