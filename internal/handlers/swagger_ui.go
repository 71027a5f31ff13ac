package handlers

import (
	"bytes"
	"html/template"
	"net/http"
)

var swaggerTemplate = template.Must(template.New("swagger").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.10.0/swagger-ui.css">
    <style>
        html { box-sizing: border-box; overflow-y: scroll; }
        body { margin:0; padding:0; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.10.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: "/api/docs/openapi.json",
                dom_id: '#swagger-ui',
                deepLinking: true
            });
        };
    </script>
</body>
</html>`))

// renderHTML executes tmpl into a buffer so a failure can still be answered
// with a 500 before any byte reaches the client.
func renderHTML(w http.ResponseWriter, tmpl *template.Template, data interface{}) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

// SwaggerUI serves a Swagger UI page for the OpenAPI document
func (h *SEBHandler) SwaggerUI(w http.ResponseWriter, r *http.Request) {
	err := renderHTML(w, swaggerTemplate, struct{ Title string }{Title: "Glacier SEB API"})
	if err != nil {
		h.logger.Error(r.Context(), "[API_DOCS_ERROR] Failed to render Swagger UI", nil, err)
		h.metrics.RecordAPIError("render_error", "/api/docs")
	}
}
