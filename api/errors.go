package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"phishing-detector/detector"
)

// APIError is the body of every error response:
// {"error": {"code": "extraction_timeout", "kind": "ExtractionTimeout", "message": "..."}}
type APIError struct {
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// JSONError sends a structured error response.
func JSONError(c *gin.Context, status int, code, kind, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: APIError{Code: code, Kind: kind, Message: msg}})
}

func ValidationError(c *gin.Context, msg string) {
	JSONError(c, http.StatusUnprocessableEntity, "validation_error", "", msg)
}

func Internal(c *gin.Context, msg string) {
	JSONError(c, http.StatusInternalServerError, "internal_error", "", msg)
}

func NotImplemented(c *gin.Context, msg string) {
	JSONError(c, http.StatusNotImplemented, "not_implemented", "", msg)
}

// StatusForKind maps a failure kind onto the HTTP status the API reports.
func StatusForKind(k detector.Kind) int {
	switch k {
	case detector.KindExtractionFailure:
		return http.StatusBadRequest
	case detector.KindExtractionTimeout:
		return http.StatusRequestTimeout
	case detector.KindVectorizationFailure:
		return http.StatusUnprocessableEntity
	case detector.KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func codeForKind(k detector.Kind) string {
	switch k {
	case detector.KindExtractionFailure:
		return "extraction_failure"
	case detector.KindExtractionTimeout:
		return "extraction_timeout"
	case detector.KindVectorizationFailure:
		return "vectorization_failure"
	case detector.KindInferenceFailure:
		return "inference_failure"
	case detector.KindServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal_error"
	}
}

// CoreError reports a failure returned by the detection service.
func CoreError(c *gin.Context, err error) {
	ce := detector.Classify(err, detector.KindInferenceFailure)
	JSONError(c, StatusForKind(ce.Kind), codeForKind(ce.Kind), ce.Kind.String(), ce.Error())
}
