package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const serviceCheckTimeout = 5 * time.Second

// HealthProber answers whether the pose service is listening.
type HealthProber interface {
	BaseURL() string
	HealthCheck(ctx context.Context) (int, error)
}

// CheckPoseService verifies that the pose service answers HTTP.
func CheckPoseService(ctx context.Context, probe HealthProber) Result {
	const name = "Pose service"

	checkCtx, cancel := context.WithTimeout(ctx, serviceCheckTimeout)
	defer cancel()

	status, err := probe.HealthCheck(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", probe.BaseURL(), summarizeServiceError(err))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable, HTTP %d)", probe.BaseURL(), status)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if detail, ok := statDirectory(path); !ok {
		return Result{Name: name, Detail: detail}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckImageDirectory verifies that the directory is readable and holds at
// least one regular file.
func CheckImageDirectory(name, path string) Result {
	if detail, ok := statDirectory(path); !ok {
		return Result{Name: name, Detail: detail}
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: list: %v)", path, err)}
	}
	files := 0
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files++
		}
	}
	if files == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: no files)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d files)", path, files)}
}

func statDirectory(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("%s (error: does not exist)", path), false
		}
		return fmt.Sprintf("%s (error: stat: %v)", path, err), false
	}
	if !info.IsDir() {
		return fmt.Sprintf("%s (error: is not a directory)", path), false
	}
	return "", true
}

func summarizeServiceError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "unreachable: " + opErr.Err.Error()
	}
	return err.Error()
}
