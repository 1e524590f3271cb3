package translator

import (
	"encoding/json"
	"net/http"

	"webllm-bridge/internal/domain/entity"

	openai "github.com/sashabaranov/go-openai"
)

const (
	TypeInvalidRequest = "invalid_request_error"
	TypeNotFound       = "not_found_error"
	TypeRateLimit      = "rate_limit_error"
	TypeInternal       = "internal_server_error"

	genericInternalMessage = "An unexpected error occurred"
	genericNotReadyMessage = "The inference engine is not ready, retry shortly"
)

// Response is an HTTP status and a JSON-encodable body.
type Response struct {
	Status int
	Body   any
}

// ToHTTPResponse maps an invocation result onto the wire. Client errors
// always carry their message; server errors carry a generic one unless
// exposeDetails is set.
func ToHTTPResponse(result entity.InferenceResult, exposeDetails bool) Response {
	if result.OK() {
		payload := result.Payload
		if len(payload) == 0 {
			payload = json.RawMessage("null")
		}
		return Response{Status: http.StatusOK, Body: payload}
	}
	return FailureResponse(result.Failure, exposeDetails)
}

func FailureResponse(f *entity.Failure, exposeDetails bool) Response {
	switch f.Kind {
	case entity.FailureInvalidRequest:
		return ErrorResponse(http.StatusBadRequest, f.Message, TypeInvalidRequest)
	case entity.FailureNotFound:
		return ErrorResponse(http.StatusNotFound, f.Message, TypeNotFound)
	case entity.FailureRateLimited:
		return ErrorResponse(http.StatusTooManyRequests, f.Message, TypeRateLimit)
	case entity.FailureEngineNotReady, entity.FailureTornDown:
		return ErrorResponse(http.StatusServiceUnavailable, serverMessage(f, genericNotReadyMessage, exposeDetails), TypeInternal)
	default:
		return ErrorResponse(http.StatusInternalServerError, serverMessage(f, genericInternalMessage, exposeDetails), TypeInternal)
	}
}

func ErrorResponse(status int, message, errType string) Response {
	return Response{
		Status: status,
		Body: openai.ErrorResponse{
			Error: &openai.APIError{
				Message: message,
				Type:    errType,
			},
		},
	}
}

func serverMessage(f *entity.Failure, generic string, exposeDetails bool) string {
	if exposeDetails {
		return f.Detail()
	}
	return generic
}
