package web

import "embed"

// TemplatesFS holds the page templates rendered by internal/http.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds stylesheets and scripts served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
