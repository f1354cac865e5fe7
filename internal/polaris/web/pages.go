package web

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	tmplSuccess = mustParse("templates/success.html")
	tmplExpired = mustParse("templates/expired.html")
	tmplFailure = mustParse("templates/failure.html")
)

func mustParse(name string) *template.Template {
	content, err := templateFS.ReadFile(name)
	if err != nil {
		panic("web: missing embedded template " + name + ": " + err.Error())
	}
	t, err := template.New(name).Parse(string(content))
	if err != nil {
		panic("web: parse template " + name + ": " + err.Error())
	}
	return t
}

// successData is passed to success.html.
type successData struct {
	Recipient string
}

func renderSuccessPage(w http.ResponseWriter, recipient string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmplSuccess.Execute(w, successData{Recipient: recipient}); err != nil {
		slog.Error("web: render success template", "err", err)
	}
}

func renderExpiredPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusGone)
	if err := tmplExpired.Execute(w, nil); err != nil {
		slog.Error("web: render expired template", "err", err)
	}
}

func renderFailurePage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	if err := tmplFailure.Execute(w, nil); err != nil {
		slog.Error("web: render failure template", "err", err)
	}
}
