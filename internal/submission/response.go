package submission

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Workflow engines acknowledge a fire-and-forget trigger with a plain-text
// body rather than JSON. These markers count as success.
var successMarkers = []string{"Workflow was started", "success"}

// Outcome is the interpreted result of a webhook response.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// InterpretResponse classifies a webhook response body. A JSON body is
// trusted for its success flag or a known success message; a non-JSON body
// succeeds only when it contains a recognized acknowledgment marker. Anything
// else is an error so the caller can retry.
func InterpretResponse(status int, body []byte) (Outcome, error) {
	if status < 200 || status > 299 {
		return Outcome{}, fmt.Errorf("webhook returned status %d", status)
	}

	text := string(body)
	var decoded Outcome
	if err := json.Unmarshal(body, &decoded); err == nil {
		if decoded.Success || containsMarker(decoded.Message) {
			decoded.Success = true
			return decoded, nil
		}
		return Outcome{}, fmt.Errorf("webhook reported failure: %s", decoded.Message)
	}

	if containsMarker(text) {
		return Outcome{Success: true, Message: strings.TrimSpace(text)}, nil
	}
	return Outcome{}, fmt.Errorf("unrecognized webhook response: %.200s", text)
}

func containsMarker(text string) bool {
	for _, marker := range successMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
