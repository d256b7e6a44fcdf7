package docscan

import (
	"context"
	"errors"

	"github.com/expatdesk/docvault/internal/infrastructure/resilience"
)

func classifyExtractError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var status httpStatusError
	if errors.As(err, &status) {
		// 5xx and 429 are worth retrying; other statuses are permanent.
		code := int(status)
		retryable := code >= 500 || code == 429
		return resilience.ErrorClassification{
			Retryable:     retryable,
			RecordFailure: true,
		}
	}

	// Transport-level failures (refused, reset, DNS) surface as plain errors.
	return resilience.ErrorClassification{
		Retryable:     true,
		RecordFailure: true,
	}
}
