package handlers

import (
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"
)

// ConfigHandler serves the current configuration with credentials masked.
// It is YAML unless the format query parameter asks for json.
type ConfigHandler struct {
	configProvider ConfigProvider
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(provider ConfigProvider) *ConfigHandler {
	return &ConfigHandler{
		configProvider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *ConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.configProvider.Config()
	if cfg == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "no configuration loaded"})
		return
	}

	redacted := cfg.Redacted()
	switch r.URL.Query().Get("format") {
	case "", "yaml":
		w.Header().Set("Content-Type", "text/yaml")
		w.WriteHeader(http.StatusOK)
		if err := yaml.NewEncoder(w).Encode(redacted); err != nil {
			slog.Error("failed to encode YAML response", "error", err)
		}
	case "json":
		writeJSON(w, http.StatusOK, redacted)
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "format must be yaml or json"})
	}
}
