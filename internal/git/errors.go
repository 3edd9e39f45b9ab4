package git

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/gardener/internal/foundation/errors"
)

// ConflictError reports files edited both locally and on the remote since the last sync.
type ConflictError struct {
	Branch string
	Paths  []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("sync conflict on %s: %s changed locally and on the remote", e.Branch, strings.Join(e.Paths, ", "))
}

// ClassifyGitError translates go-git errors into ClassifiedErrors.
func ClassifyGitError(err error, op string, remote string) error {
	if err == nil {
		return nil
	}

	// Already classified
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	l := strings.ToLower(err.Error())

	builder := errors.WrapError(err, errors.CategoryGit, "git "+op+" failed").
		WithContext("op", op).
		WithContext("remote", remote)

	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "authorization") || strings.Contains(l, "invalid credentials"):
		builder.UserAction()
	case strings.Contains(l, "repository not found") || strings.Contains(l, "does not exist"):
		builder.UserAction()
	case strings.Contains(l, "remote hung up") || strings.Contains(l, "connection reset") || strings.Contains(l, "timeout") || strings.Contains(l, "no route to host"):
		builder.Retryable()
	case strings.Contains(l, "non-fast-forward") || strings.Contains(l, "diverged"):
		builder.WithContext("diverged", true).UserAction()
	}

	return builder.Build()
}
