package handler

import "net/http"

// DocsHandler redirects to the extraction documentation.
type DocsHandler struct {
	url string
}

// NewDocsHandler creates a new DocsHandler.
func NewDocsHandler(url string) *DocsHandler {
	return &DocsHandler{url: url}
}

// Redirect handles GET / - 302 to the documentation page.
func (h *DocsHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.url, http.StatusFound)
}
