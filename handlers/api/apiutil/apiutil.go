package apiutil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"storecanvas/core"
	"storecanvas/middleware"
)

// WriteError maps err to a status code and writes it as {"error": ...}.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case core.IsValidation(err):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNetwork):
		status = http.StatusBadGateway
	}

	log := logrus.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	}).WithError(err)
	if status == http.StatusInternalServerError {
		log.Error("Request failed")
	} else {
		log.Debug("Request rejected")
	}

	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": err.Error()})
}

// DecodeJSON decodes the request body into v. A malformed body is answered
// with 400, a body that decodes into an invalid layer with 422. It reports
// whether decoding succeeded.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if core.IsValidation(err) {
			WriteError(w, r, err)
			return false
		}
		logrus.WithField("error", err).Debug("Failed to decode request")
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid request body"})
		return false
	}
	return true
}

// UserID returns the authenticated caller, answering 401 when there is none.
func UserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok || userID == "" {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "User claims not found"})
		return "", false
	}
	return userID, true
}
