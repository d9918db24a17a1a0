package http

import (
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in - Fusion BI</title></head>
<body>
<h1>Fusion BI</h1>
{{if .Error}}<p role="alert">{{.Error}}</p>{{end}}
<form method="post" action="/login">
<input type="hidden" name="next" value="{{.Next}}">
<label>Username or email <input name="login" value="{{.Login}}" autocomplete="username"></label>
<label>Password <input name="password" type="password" autocomplete="current-password"></label>
<button type="submit">Sign in</button>
</form>
</body>
</html>
`))

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html data-theme="{{.Profile.Theme}}">
<head><title>Fusion BI</title></head>
<body>
<header>Welcome, {{.DisplayName}} <form method="post" action="/logout"><button type="submit">Sign out</button></form></header>
<section>
{{range .KPIs}}<div><h2>{{.Title}}</h2><p>{{.Value}}</p>{{if .Hint}}<small>{{.Hint}}</small>{{end}}</div>
{{end}}</section>
<nav>
{{range .Modules}}<a href="{{.URL}}">{{.Name}}</a>
{{else}}<p>No modules are assigned to your account.</p>
{{end}}</nav>
</body>
</html>
`))

type loginPage struct {
	Error string
	Login string
	Next  string
}

func renderPage(w http.ResponseWriter, logger *slog.Logger, r *http.Request, status int, tmpl *template.Template, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		logger.ErrorContext(r.Context(), "failed to render page",
			slog.String("template", tmpl.Name()),
			slog.String("error", err.Error()),
		)
	}
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return "/"
	}
	return next
}
