package document

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
)

// ErrArtifactTooLarge indicates the rendered document exceeds the configured
// maximum size.
var ErrArtifactTooLarge = errors.New("artifact exceeds maximum size")

// CheckSize returns the size of the file at path, or ErrArtifactTooLarge if
// it exceeds limit. A non-positive limit disables the check.
func CheckSize(path string, limit int64) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if limit > 0 && size > limit {
		return size, fmt.Errorf("%w: %s > %s", ErrArtifactTooLarge,
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(limit)))
	}
	return size, nil
}

// Commit publishes staging at final. The file is first copied next to final
// as final+".tmp" and then renamed, so final is either absent or complete.
// The staging file is left in place.
func Commit(staging, final string) (err error) {
	tmp := final + ".tmp"
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err := copyFile(staging, tmp); err != nil {
		return fmt.Errorf("staging artifact: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("publishing artifact: %w", err)
	}
	return nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
