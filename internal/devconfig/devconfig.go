// Package devconfig serves the optional operator-maintained form
// configuration. A missing document is the normal open-for-registration
// default, not an error.
package devconfig

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/osd-exam/backend-registration/internal/common"
)

// Config is the recognized shape of the form configuration document.
type Config struct {
	RegistrationClosed          bool            `json:"registrationClosed"`
	CloseMessage                string          `json:"closeMessage,omitempty"`
	SubmitButtonText            string          `json:"submitButtonText,omitempty"`
	SubmitButtonDisabled        bool            `json:"submitButtonDisabled"`
	PrefillData                 json.RawMessage `json:"prefillData,omitempty"`
	ConfirmationDeadlineDisplay string          `json:"confirmationDeadlineDisplay,omitempty"`
}

// Handler serves GET /api/form-config from a JSON file on disk. Path may be
// empty, in which case the default is always returned.
type Handler struct {
	Path   string
	Logger zerolog.Logger
}

// Get returns the current form configuration.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.load()
	if err != nil {
		h.Logger.Error().Err(err).Str("path", h.Path).Msg("form config unreadable")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to read form configuration", nil)
		return
	}
	common.JSON(w, http.StatusOK, cfg)
}

func (h *Handler) load() (Config, error) {
	if h.Path == "" {
		return Config{}, nil
	}
	raw, err := os.ReadFile(h.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
