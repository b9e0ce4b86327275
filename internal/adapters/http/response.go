package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const timeStampLayout = "2006-01-02T15:04:05.000000"

// envelope is the single response shape. Success responses fill data and
// message; errors fill reason and developerMessage.
type envelope struct {
	TimeStamp        string `json:"timeStamp"`
	Data             any    `json:"data,omitempty"`
	Message          string `json:"message,omitempty"`
	Reason           string `json:"reason,omitempty"`
	DeveloperMessage string `json:"developerMessage,omitempty"`
	Status           string `json:"status"`
	StatusCode       int    `json:"statusCode"`
}

// statusName renders an HTTP status as BAD_REQUEST, TOO_MANY_REQUESTS and so on.
func statusName(code int) string {
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_"))
}

func timeStamp() string {
	return time.Now().UTC().Format(timeStampLayout)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	writeJSON(w, statusCode, envelope{
		TimeStamp:  timeStamp(),
		Data:       data,
		Message:    message,
		Status:     statusName(statusCode),
		StatusCode: statusCode,
	})
}

func writeError(w http.ResponseWriter, statusCode int, reason, developerMessage string) {
	writeJSON(w, statusCode, envelope{
		TimeStamp:        timeStamp(),
		Reason:           reason,
		DeveloperMessage: developerMessage,
		Status:           statusName(statusCode),
		StatusCode:       statusCode,
	})
}
