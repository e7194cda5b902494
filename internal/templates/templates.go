package templates

import (
	"embed"
	"html/template"
	"strconv"
)

//go:embed *.html
var htmlFiles embed.FS

var Page *template.Template

func Init(styleAssetPath string) error {
	funcs := template.FuncMap{
		"StyleAssetPath": func() string { return styleAssetPath },
		"num":            func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) },
		"eqnum": func(p *float64, f float64) bool {
			return p != nil && *p == f
		},
	}
	tmpls, err := template.New("all").Funcs(funcs).ParseFS(htmlFiles, "*.html")
	if err != nil {
		return err
	}
	Page = ensure(tmpls, "page.html")
	return nil
}

func ensure(templates *template.Template, name string) *template.Template {
	tmpl := templates.Lookup(name)
	if tmpl == nil {
		panic("template " + name + " not found")
	}
	return tmpl
}
