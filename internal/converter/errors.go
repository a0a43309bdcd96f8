package converter

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/git2pdf/internal/document"
	"github.com/fyrsmithlabs/git2pdf/internal/fetch"
	"github.com/fyrsmithlabs/git2pdf/internal/gate"
	"github.com/fyrsmithlabs/git2pdf/internal/walker"
	"github.com/fyrsmithlabs/git2pdf/internal/workspace"
)

var (
	// ErrInternal wraps unexpected failures, including recovered panics.
	ErrInternal = errors.New("internal conversion error")

	// ErrArtifactNotFound indicates a requested artifact does not exist.
	ErrArtifactNotFound = errors.New("artifact not found")
)

// Failure kinds reported by Kind.
const (
	KindInvalidRepository     = "invalid_repository"
	KindTooManyConversions    = "too_many_conversions"
	KindNoUsableWorkspace     = "no_usable_workspace"
	KindInsufficientDiskSpace = "insufficient_disk_space"
	KindCloneTimeout          = "clone_timeout"
	KindCloneFailed           = "clone_failed"
	KindFileCountExceeded     = "file_count_exceeded"
	KindSizeBudgetExceeded    = "size_budget_exceeded"
	KindArtifactTooLarge      = "artifact_too_large"
	KindArtifactNotFound      = "artifact_not_found"
	KindCanceled              = "canceled"
	KindInternal              = "internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{fetch.ErrInvalidRepository, KindInvalidRepository},
	{gate.ErrTooManyConversions, KindTooManyConversions},
	{workspace.ErrNoUsableWorkspace, KindNoUsableWorkspace},
	{workspace.ErrInsufficientDiskSpace, KindInsufficientDiskSpace},
	{fetch.ErrCloneTimeout, KindCloneTimeout},
	{fetch.ErrCloneFailed, KindCloneFailed},
	{walker.ErrFileCountExceeded, KindFileCountExceeded},
	{walker.ErrSizeBudgetExceeded, KindSizeBudgetExceeded},
	{document.ErrArtifactTooLarge, KindArtifactTooLarge},
	{ErrArtifactNotFound, KindArtifactNotFound},
	{context.Canceled, KindCanceled},
	{context.DeadlineExceeded, KindCanceled},
}

// Kind maps err to a stable snake_case failure kind. It returns "" for nil
// and KindInternal for anything unrecognized.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
