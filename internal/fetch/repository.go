// Package fetch clones remote repositories under a hard deadline.
package fetch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRepository indicates a repository reference that does not match
// the accepted https://<host>/<owner>/<name>[.git] form.
var ErrInvalidRepository = errors.New("invalid repository reference")

var repoURLPattern = regexp.MustCompile(`^https://([A-Za-z0-9.-]+)/([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+?)(\.git)?$`)

// Repository identifies a remote repository.
type Repository struct {
	Host  string
	Owner string
	Name  string
	// CloneURL is the canonical https URL, always ending in .git.
	CloneURL string
}

// String returns owner/name.
func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepository validates raw against the strict https pattern and returns
// the normalized repository. When allowedHosts is non-empty the host must be
// one of them.
func ParseRepository(raw string, allowedHosts []string) (Repository, error) {
	raw = strings.TrimSpace(raw)
	m := repoURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return Repository{}, fmt.Errorf("%w: %q", ErrInvalidRepository, raw)
	}

	host := strings.ToLower(m[1])
	owner, name := m[2], m[3]
	for _, part := range []string{owner, name} {
		if part == "." || part == ".." || strings.Trim(part, ".") == "" {
			return Repository{}, fmt.Errorf("%w: %q", ErrInvalidRepository, raw)
		}
	}

	if len(allowedHosts) > 0 && !hostAllowed(host, allowedHosts) {
		return Repository{}, fmt.Errorf("%w: host %s is not allowed", ErrInvalidRepository, host)
	}

	return Repository{
		Host:     host,
		Owner:    owner,
		Name:     name,
		CloneURL: fmt.Sprintf("https://%s/%s/%s.git", host, owner, name),
	}, nil
}

func hostAllowed(host string, allowed []string) bool {
	for _, h := range allowed {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}
