package server

import (
	"bytes"
	"html/template"

	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"premarket-bias/internal/service"
)

type pageData struct {
	Idle         bool
	Message      string
	DefaultModel string
	Result       *service.Result
	Narrative    template.HTML
	RawContext   string
	Failed       bool
}

type pages struct {
	tmpl *template.Template
	md   goldmark.Markdown
}

func newPages() *pages {
	return &pages{
		tmpl: template.Must(template.New("page").Parse(pageTemplate)),
		md:   goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Strikethrough)),
	}
}

// markdown renders model output; raw HTML in the source is not passed through.
func (p *pages) markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := p.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src)), err
	}
	return template.HTML(buf.String()), nil
}

func (s *Server) render(c echo.Context, status int, data pageData) error {
	var buf bytes.Buffer
	if err := s.pages.tmpl.Execute(&buf, data); err != nil {
		return err
	}
	return c.HTMLBlob(status, buf.Bytes())
}

const pageTemplate = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Pre-Market Bias Generator (ES / NQ)</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; }
form { display: grid; gap: .5rem; max-width: 24rem; margin-bottom: 2rem; }
.info { background: #eef5ff; padding: .75rem 1rem; border-radius: .4rem; }
.warn { background: #fff4e5; padding: .75rem 1rem; border-radius: .4rem; }
pre { background: #f6f8fa; padding: 1rem; overflow-x: auto; }
</style>
</head>
<body>
<h1>⚡ Pre-Market Bias Generator (ES / NQ)</h1>
<p>Generate a structured morning briefing in <strong>one click</strong>.</p>

<form method="post" action="/run" autocomplete="off">
  <label>LLM API Key <input type="password" name="llm_key" value=""></label>
  <label>NewsAPI Key (optional) <input type="password" name="news_key" value=""></label>
  <label>Model <input type="text" name="model" placeholder="{{.DefaultModel}}" value=""></label>
  <button type="submit">Run Generator</button>
</form>

{{if .Idle}}
<p class="info">{{.Message}}</p>
{{else}}
<h2>📈 Bias Summary</h2>
<div class="{{if .Failed}}warn{{else}}narrative{{end}}">{{.Narrative}}</div>
<hr>
<details>
<summary>🔍 Raw context sent to the model</summary>
<pre>{{.RawContext}}</pre>
</details>
{{with .Result}}<p><small>run {{.RunID}} · {{.Model}}</small></p>{{end}}
{{end}}
</body>
</html>
`
