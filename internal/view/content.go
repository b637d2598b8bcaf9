package view

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// ThemeMode is the color scheme the view renders with
type ThemeMode string

const (
	ThemeLight ThemeMode = "light"
	ThemeDark  ThemeMode = "dark"
)

// ThemeModeFor maps an editor color theme kind to a view theme. Dark and
// high contrast themes render dark, everything else light.
func ThemeModeFor(kind string) ThemeMode {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "dark", "high-contrast", "high_contrast", "highcontrast", "hc":
		return ThemeDark
	default:
		return ThemeLight
	}
}

// DefaultBaseURI is where the view's compiled assets are expected
const DefaultBaseURI = "dist/explo_ide_view/"

// Content is the data a view document is rendered from
type Content struct {
	BaseURI      string
	VMServiceURI string
	ThemeMode    ThemeMode
}

var contentTemplate = template.Must(template.New("view").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no">
    <base href="{{.BaseURI}}">
</head>
<body>
    <script>
        window.explo = {
            config: {
                vmServiceUri: {{.VMServiceURI}},
                themeMode: {{.ThemeMode}}
            }
        }

        const scriptTag = document.createElement('script')
        scriptTag.src = 'main.dart.js'
        scriptTag.type = 'application/javascript'
        document.body.append(scriptTag)
    </script>
</body>
</html>
`))

// Render produces the view document
func Render(c Content) ([]byte, error) {
	if c.VMServiceURI == "" {
		return nil, fmt.Errorf("render view: empty vm service uri")
	}
	if c.ThemeMode == "" {
		c.ThemeMode = ThemeLight
	}
	base := c.BaseURI
	if base == "" {
		base = DefaultBaseURI
	}

	data := struct {
		BaseURI      template.URL // configured by the operator, not filtered
		VMServiceURI string
		ThemeMode    string
	}{
		BaseURI:      template.URL(base),
		VMServiceURI: c.VMServiceURI,
		ThemeMode:    string(c.ThemeMode),
	}

	var buf bytes.Buffer
	if err := contentTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render view: %w", err)
	}
	return buf.Bytes(), nil
}
