package preflight

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"stamper/internal/config"
	"stamper/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Hook checks only run when the corresponding target is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Upload directory", cfg.Paths.UploadDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	for _, status := range deps.CheckBinaries(deps.Required(cfg)) {
		result := Result{
			Name:   status.Name,
			Passed: status.Available,
			Detail: status.Detail,
		}
		if status.Available {
			result.Detail = status.Command
		}
		results = append(results, result)
	}

	hookTargets := []struct {
		name   string
		target string
	}{
		{"Start hook", cfg.Hooks.Start},
		{"Complete hook", cfg.Hooks.Complete},
		{"Error hook", cfg.Hooks.Error},
	}
	for _, hook := range hookTargets {
		if strings.TrimSpace(hook.target) == "" {
			continue
		}
		results = append(results, CheckHookTarget(hook.name, hook.target))
	}

	return results
}

// Passed reports whether every result in the set passed.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

// CheckDirectoryAccess verifies that the directory exists and is readable,
// writable, and traversable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckHookTarget verifies a hook target is either a well-formed http(s)
// URL or an executable program on disk.
func CheckHookTarget(name, target string) Result {
	target = strings.TrimSpace(target)
	if target == "" {
		return Result{Name: name, Detail: "not configured"}
	}

	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		parsed, err := url.Parse(target)
		if err != nil || parsed.Host == "" {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: malformed url)", target)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (url)", target)}
	}

	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: program does not exist)", target)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", target, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", target)}
	}
	if err := unix.Access(target, unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not executable: %v)", target, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (program)", target)}
}
