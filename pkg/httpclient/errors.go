package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/erickpaine43/Mascotas-sub000/pkg/errors"
)

// ProviderErrorResponse is the structured error body returned by the hosted
// payment provider API.
type ProviderErrorResponse struct {
	Error *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError reads the body of a non-2xx HTTP response from the
// payment provider and translates it into an appropriate AppError. If the
// body matches the provider's structured error format, the code and message
// are preserved. Otherwise a generic gateway error is returned with the
// status code and raw body.
//
// The caller should only invoke this when resp.StatusCode indicates an error
// (i.e., not 2xx). The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, providerName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return apperrors.Gateway(
			fmt.Sprintf("%s returned status %d (failed to read body)", providerName, resp.StatusCode), err)
	}

	var provider ProviderErrorResponse
	if json.Unmarshal(bodyBytes, &provider) == nil && provider.Error != nil {
		return mapProviderError(resp.StatusCode, provider.Error.Code, provider.Error.Message, providerName)
	}

	return apperrors.Gateway(
		fmt.Sprintf("%s returned status %d: %s", providerName, resp.StatusCode, string(bodyBytes)), nil)
}

// mapProviderError translates the provider's HTTP status and error code into
// an AppError that preserves the error semantics.
func mapProviderError(status int, code, message, providerName string) error {
	qualifiedMsg := fmt.Sprintf("%s: %s", providerName, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound("gateway_session", code)
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(qualifiedMsg)
	case status >= 500:
		return apperrors.Gateway(fmt.Sprintf("%s server error (%d/%s): %s", providerName, status, code, message), nil)
	default:
		return apperrors.Gateway(qualifiedMsg, nil)
	}
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
// Client errors should not be retried: the request itself was invalid.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
