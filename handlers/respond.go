package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"weHabitAPI/services"
)

var validate = validator.New()

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps a ServiceError onto its status code. Anything
// else is logged and reported as a 500 without details.
func respondWithServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		respondWithJSON(w, svcErr.GetStatusCode(), map[string]string{
			"error": svcErr.Message,
			"code":  svcErr.Code,
		})
		return
	}
	log.Error("request failed", zap.Error(err))
	respondWithError(w, http.StatusInternalServerError, "Something went wrong, please try again")
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return services.NewValidationError("Invalid request body", err)
	}
	if err := validate.Struct(dst); err != nil {
		return services.NewValidationError(err.Error(), err)
	}
	return nil
}
