package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"

	deployment "github.com/haowjy/meridian-deploy-go"
)

// mapError classifies an SDK error into a deployment.ProviderError.
// Context errors pass through unchanged.
func mapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = http.StatusText(apiErr.StatusCode)
		}
		return deployment.ProviderErrorFromStatus(provider, apiErr.StatusCode, message, nil)
	}

	return &deployment.ProviderError{
		Provider:  provider,
		Message:   err.Error(),
		Retryable: true,
		Err:       fmt.Errorf("%w: %w", deployment.ErrProviderUnavailable, err),
	}
}
