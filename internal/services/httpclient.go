package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// callTimeout bounds a call by both the configured timeout and whatever is
// left of the context's deadline.
func callTimeout(ctx context.Context, timeout time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			if remaining <= 0 {
				return 0, context.DeadlineExceeded
			}
			return remaining, nil
		}
	}
	return timeout, nil
}

// doJSON sends the agent's request and decodes a 2xx JSON body into out.
// out may be nil when the response body is irrelevant.
func doJSON(ctx context.Context, agent *fiber.Agent, timeout time.Duration, out interface{}) error {
	t, err := callTimeout(ctx, timeout)
	if err != nil {
		fiber.ReleaseAgent(agent)
		return err
	}

	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return fmt.Errorf("failed to prepare request: %w", err)
	}

	code, body, errs := agent.Timeout(t).Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("request failed: %w", errors.Join(errs...))
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return &httpStatusError{Code: code, Body: truncate(string(body), 300)}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
