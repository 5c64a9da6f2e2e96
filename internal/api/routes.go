package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	mux.Handle("GET "+h.basePath+"/health", chain(http.HandlerFunc(h.Health)))
	mux.Handle("POST "+h.basePath+"/messages", chain(http.HandlerFunc(h.PublishMessage)))

	if h.rejections != nil {
		mux.Handle("GET "+h.basePath+"/rejections", chain(http.HandlerFunc(h.ListRejections)))
	}
}
