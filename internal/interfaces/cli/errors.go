package cli

import (
	"context"
	"errors"
	"fmt"

	"ytd.app/adminctl/internal/core/domain"
)

// Exit codes of the adminctl binary
const (
	ExitFailure   = 1
	ExitSignedOut = 2
	ExitForbidden = 3
	ExitLimited   = 4
	ExitTimeout   = 5
)

// describeError renders err as the message printed before exiting
func describeError(err error) string {
	var (
		timeout   *domain.TimeoutError
		limited   *domain.PlanLimitExceededError
		forbidden *domain.ForbiddenError
		failed    *domain.RequestFailedError
		csrf      *domain.CsrfFetchError
	)

	switch {
	case domain.IsSessionEnded(err):
		return fmt.Sprintf("%v\n   Run 'adminctl auth login' to sign in", err)
	case errors.As(err, &timeout):
		return fmt.Sprintf("no response within %s (%s %s)", timeout.Timeout, timeout.Method, timeout.Path)
	case errors.As(err, &limited):
		if limited.UpgradeURL != "" {
			return fmt.Sprintf("%s\n   Upgrade at %s", limited.Error(), limited.UpgradeURL)
		}
		return limited.Error()
	case errors.As(err, &forbidden):
		if forbidden.Reason != "" {
			return fmt.Sprintf("%s (reason: %s)", forbidden.Error(), forbidden.Reason)
		}
		return forbidden.Error()
	case errors.As(err, &csrf):
		return fmt.Sprintf("could not obtain a CSRF token: %v", csrf)
	case errors.As(err, &failed) && failed.StatusCode != 0:
		return fmt.Sprintf("%s (status %d)", failed.Error(), failed.StatusCode)
	case errors.Is(err, context.Canceled):
		return "interrupted"
	}
	return err.Error()
}

// exitCode maps err to the process exit status
func exitCode(err error) int {
	var (
		timeout   *domain.TimeoutError
		limited   *domain.PlanLimitExceededError
		forbidden *domain.ForbiddenError
	)

	switch {
	case domain.IsSessionEnded(err):
		return ExitSignedOut
	case errors.As(err, &forbidden):
		return ExitForbidden
	case errors.As(err, &limited):
		return ExitLimited
	case errors.As(err, &timeout):
		return ExitTimeout
	}
	return ExitFailure
}
