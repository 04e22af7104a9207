package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"directory-admin-service/internal/authz"
)

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode response body", "error", err)
	}
}

// Detail writes the {"detail": ...} error shape shared by every API
// error response.
func Detail(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, map[string]string{"detail": detail})
}

// Denial renders a typed access denial: its status plus the reason,
// detail, and missing-permission list it already carries.
func Denial(w http.ResponseWriter, d *authz.Denial) {
	JSON(w, d.Status, d)
}
