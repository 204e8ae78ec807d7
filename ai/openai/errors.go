package openai

import (
	"context"
	"errors"
	"net/http"

	"github.com/poiesic/docqa/retry"
	goopenai "github.com/sashabaranov/go-openai"
)

// classify marks connection failures and retryable HTTP statuses as transient.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if retryableStatus(apiErr.HTTPStatusCode) {
			return retry.Transient(err)
		}
		return err
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if retryableStatus(reqErr.HTTPStatusCode) {
			return retry.Transient(err)
		}
		return err
	}

	if retry.IsTransient(err) && !errors.Is(err, retry.ErrTransient) {
		return retry.Transient(err)
	}
	return err
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
