package widget

import (
	"fmt"
	"html/template"
	"io"
)

var htmlTemplate = template.Must(template.New("widget").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{if .Header}}{{.Header.Title}}{{else}}Chat{{end}} preview</title>
<link rel="stylesheet" href="/static/widget.css">
</head>
<body class="cby-preview">
{{- if .Launcher}}
<button class="cby-launcher" data-icon="{{.Launcher.Icon}}" style="background-color: {{.Launcher.Color}}">
{{- if .Launcher.CustomIconURL}}<img src="{{.Launcher.CustomIconURL}}" alt="launcher">{{else}}<span class="cby-icon cby-icon-{{.Launcher.Icon}}"></span>{{end -}}
</button>
{{- else}}
<section class="cby-panel">
<header class="cby-header">
<img class="cby-avatar" src="{{.Header.AvatarURL}}" alt="avatar">
<span class="cby-title">{{.Header.Title}}</span>
<button class="cby-close" aria-label="close">&times;</button>
</header>
<ol class="cby-messages">
{{- range .Bubbles}}
<li class="cby-bubble cby-{{.Role}} cby-align-{{.Align}}" data-message-id="{{.MessageID}}" style="background-color: {{.Background}}; color: {{.Foreground}}">{{.Content}}</li>
{{- end}}
</ol>
{{- if .QuickReplies}}
<div class="cby-quick-replies">
{{- range .QuickReplies}}
<button class="cby-quick-reply">{{.}}</button>
{{- end}}
</div>
{{- end}}
<form class="cby-input">
<input type="text" placeholder="{{.Input.Placeholder}}"{{if .Input.Disabled}} disabled{{end}}>
<button type="submit" style="background-color: {{.Input.SendColor}}"{{if .Input.Disabled}} disabled{{end}}>Send</button>
</form>
</section>
{{- end}}
</body>
</html>
`))

// RenderHTML writes v as a standalone HTML page.
func RenderHTML(w io.Writer, v View) error {
	if err := htmlTemplate.Execute(w, v); err != nil {
		return fmt.Errorf("render widget html: %w", err)
	}
	return nil
}
