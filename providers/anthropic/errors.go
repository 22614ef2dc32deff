package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"

	deployment "github.com/haowjy/meridian-deploy-go"
)

const providerName = "anthropic"

// mapError classifies an SDK error into a deployment.ProviderError so the
// stream can report the right ErrorKind. Context errors pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		message := http.StatusText(apiErr.StatusCode)
		if apiErr.Request != nil && apiErr.Response != nil {
			message = apiErr.Error()
		}
		return deployment.ProviderErrorFromStatus(providerName, apiErr.StatusCode, message, nil)
	}

	// Transport failures (connection reset, DNS) never reached the API.
	return &deployment.ProviderError{
		Provider:  providerName,
		Message:   err.Error(),
		Retryable: true,
		Err:       fmt.Errorf("%w: %w", deployment.ErrProviderUnavailable, err),
	}
}
