package sync

import (
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/go-account-service/internal/api"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// The protected set is exactly the adminEmail query parameters on the
// request; nothing is merged in implicitly.
func protectedFor(r *http.Request) []string {
	return r.URL.Query()["adminEmail"]
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Preview(r.Context(), protectedFor(r))
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Apply(r.Context(), protectedFor(r))
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}
