package report

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderHTML renders a report as a standalone HTML page.
func RenderHTML(r *Report) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(r.Markdown()), &buf); err != nil {
		return "", fmt.Errorf("render report %s: %w", r.Name, err)
	}

	page := fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>%s</title></head>
<body style="font-family: sans-serif; font-size: 15px; line-height: 1.5; max-width: 48em; margin: 2em auto;">
%s
</body></html>`, html.EscapeString(r.Name), buf.String())

	return page, nil
}
