package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are "<MODULE>_<NNN>"; the module prefix groups related failures.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Aliases used by call sites that predate the COMMON_* naming.
const (
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeUnauthorized   = ErrCodeUnauthorized
	CodeForbidden      = ErrCodeForbidden
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeRateLimit      = ErrCodeTooManyRequests
	CodeNotImplemented = ErrCodeNotImplemented
	CodeUnknown        = ErrorCode("UNKNOWN")
	CodeOK             = ErrorCode("OK")
)

// Feature extraction error codes
const (
	ErrCodeInvalidPattern    ErrorCode = "EXTRACT_001"
	ErrCodeEmptyTaxonomy     ErrorCode = "EXTRACT_002"
	ErrCodeDuplicateCategory ErrorCode = "EXTRACT_003"
)

// Audit error codes
const (
	ErrCodeAuditNotFound   ErrorCode = "AUDIT_001"
	ErrCodeAuditEmptyText  ErrorCode = "AUDIT_002"
	ErrCodeAuditTooLarge   ErrorCode = "AUDIT_003"
	ErrCodeAuditBatchEmpty ErrorCode = "AUDIT_004"
)

// Ingestion error codes
const (
	ErrCodeIngestMalformed   ErrorCode = "INGEST_001"
	ErrCodeIngestNoMethods   ErrorCode = "INGEST_002"
	ErrCodeIngestUnsupported ErrorCode = "INGEST_003"
)

// Narrative enhancement error codes
const (
	ErrCodeEnhancerDisabled    ErrorCode = "ENHANCE_001"
	ErrCodeEnhancerFailed      ErrorCode = "ENHANCE_002"
	ErrCodeEnhancerBadResponse ErrorCode = "ENHANCE_003"
)

// Storage and messaging error codes
const (
	ErrCodeObjectNotFound ErrorCode = "STORE_001"
	ErrCodeObjectStorage  ErrorCode = "STORE_002"
	ErrCodeSearchIndex    ErrorCode = "STORE_003"
	ErrCodeMessageQueue   ErrorCode = "STORE_004"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusForbidden,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeInvalidPattern:    http.StatusInternalServerError,
	ErrCodeEmptyTaxonomy:     http.StatusInternalServerError,
	ErrCodeDuplicateCategory: http.StatusInternalServerError,

	ErrCodeAuditNotFound:   http.StatusNotFound,
	ErrCodeAuditEmptyText:  http.StatusBadRequest,
	ErrCodeAuditTooLarge:   http.StatusRequestEntityTooLarge,
	ErrCodeAuditBatchEmpty: http.StatusBadRequest,

	ErrCodeIngestMalformed:   http.StatusBadRequest,
	ErrCodeIngestNoMethods:   http.StatusUnprocessableEntity,
	ErrCodeIngestUnsupported: http.StatusUnsupportedMediaType,

	ErrCodeEnhancerDisabled:    http.StatusServiceUnavailable,
	ErrCodeEnhancerFailed:      http.StatusBadGateway,
	ErrCodeEnhancerBadResponse: http.StatusBadGateway,

	ErrCodeObjectNotFound: http.StatusNotFound,
	ErrCodeObjectStorage:  http.StatusInternalServerError,
	ErrCodeSearchIndex:    http.StatusInternalServerError,
	ErrCodeMessageQueue:   http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeInvalidPattern:    "invalid taxonomy pattern",
	ErrCodeEmptyTaxonomy:     "taxonomy has no categories",
	ErrCodeDuplicateCategory: "duplicate taxonomy category",

	ErrCodeAuditNotFound:   "audit not found",
	ErrCodeAuditEmptyText:  "methods text is empty",
	ErrCodeAuditTooLarge:   "methods text exceeds size limit",
	ErrCodeAuditBatchEmpty: "batch contains no documents",

	ErrCodeIngestMalformed:   "malformed article markup",
	ErrCodeIngestNoMethods:   "no methods section found",
	ErrCodeIngestUnsupported: "unsupported document format",

	ErrCodeEnhancerDisabled:    "narrative enhancement disabled",
	ErrCodeEnhancerFailed:      "narrative enhancement failed",
	ErrCodeEnhancerBadResponse: "narrative enhancement returned an unparseable response",

	ErrCodeObjectNotFound: "object not found",
	ErrCodeObjectStorage:  "object storage error",
	ErrCodeSearchIndex:    "search index error",
	ErrCodeMessageQueue:   "message queue error",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
