// Package responses writes the JSON envelopes every endpoint returns.
package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

// retryAfterSeconds is advertised on retryable 503 responses.
const retryAfterSeconds = 5

// Success wraps every successful payload.
type Success struct {
	Data any `json:"data"`
}

// Failure wraps every error payload.
type Failure struct {
	Error Problem `json:"error"`
}

// Problem carries the code callers branch on.
type Problem struct {
	Code    pkgerrors.Code `json:"code"`
	Message string         `json:"message"`
	Details any            `json:"details,omitempty"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Success{Data: data})
}

// WriteAttachment streams a binary download such as a certificate PDF.
func WriteAttachment(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil && logg != nil {
		logg.Error(ctx, "response.attachment_write_failed", err)
	}
}

// WriteError maps err onto its code metadata. Infrastructure failures keep the generic public
// message so driver text never leaks.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	problem := Problem{Code: typed.Code(), Message: meta.PublicMessage}
	if !hidesMessage(typed.Code()) && typed.Message() != "" {
		problem.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		problem.Details = typed.Details()
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	if meta.Retryable && meta.HTTPStatus == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	writeJSON(w, meta.HTTPStatus, Failure{Error: problem})
}

func hidesMessage(code pkgerrors.Code) bool {
	switch code {
	case pkgerrors.CodeInternal, pkgerrors.CodeStoreUnavailable, pkgerrors.CodeDependency:
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// the status line is already out, so an encode failure can only be dropped
	_ = json.NewEncoder(w).Encode(payload)
}
