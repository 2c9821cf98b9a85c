package mgmt

import (
	"net/http"

	"mgmtd/internal/domain"
)

func statusFromError(err error) int {
	code, ok := domain.CodeFrom(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch code {
	case domain.CodeInvalidArgument:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case domain.CodeUnavailable:
		return http.StatusServiceUnavailable
	case domain.CodeNotImplemented:
		return http.StatusNotImplemented
	case domain.CodeFailedPrecond:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}
