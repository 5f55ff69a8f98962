// Package preflight checks the host before a meeting is recorded.
package preflight

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"

	"meetingrec/internal/config"
	"meetingrec/internal/domain"
)

// Check is one individual check result.
type Check struct {
	Name     string
	Passed   bool
	Required bool
	Message  string
}

// Result captures the outcome of all checks.
type Result struct {
	OK     bool
	Checks []Check
}

// FirstError returns the first failed required check, or nil if all passed.
func (r Result) FirstError() error {
	for _, check := range r.Checks {
		if check.Required && !check.Passed {
			return fmt.Errorf("preflight %s failed: %s", check.Name, check.Message)
		}
	}
	return nil
}

type usageFunc func(path string) (*disk.UsageStat, error)

// Runner runs the checks. Zero values use the real host.
type Runner struct {
	LookPath func(file string) (string, error)
	Usage    usageFunc
}

func (r Runner) lookPath() func(string) (string, error) {
	if r.LookPath != nil {
		return r.LookPath
	}
	return exec.LookPath
}

func (r Runner) usage() usageFunc {
	if r.Usage != nil {
		return r.Usage
	}
	return disk.Usage
}

// Run checks the external tools, credentials and output location named in cfg.
func (r Runner) Run(cfg config.Config) Result {
	result := Result{OK: true}
	add := func(check Check) {
		result.Checks = append(result.Checks, check)
		if check.Required && !check.Passed {
			result.OK = false
		}
	}

	add(r.checkCommand("ffmpeg", cfg.Audio.FFmpegCommand, true))
	add(r.checkCommand("window_resolver", cfg.Screenshot.ResolverCommand, false))
	add(r.checkCommand("screen_capture", cfg.Screenshot.CaptureCommand, true))
	add(checkAPIKey(cfg.Transcription.APIKey))
	add(checkWritable(cfg.OutputDir))
	add(checkDiskSpace(r.usage(), cfg.OutputDir, uint64(max(cfg.Storage.MinFreeMB, 0))))

	return result
}

func (r Runner) checkCommand(name, command string, required bool) Check {
	check := Check{Name: name, Required: required}
	command = strings.TrimSpace(command)
	if command == "" {
		check.Message = "no command configured"
		return check
	}
	path, err := r.lookPath()(command)
	if err != nil {
		check.Message = fmt.Sprintf("%s not found on PATH", command)
		return check
	}
	check.Passed = true
	check.Message = path
	return check
}

func checkAPIKey(key string) Check {
	check := Check{Name: "transcription_api_key", Required: false}
	if strings.TrimSpace(key) == "" {
		check.Message = "not set; transcription will fail until OPENAI_API_KEY or transcription.api_key is provided"
		return check
	}
	check.Passed = true
	check.Message = "set"
	return check
}

func checkWritable(dir string) Check {
	check := Check{Name: "output_dir", Required: true}
	if strings.TrimSpace(dir) == "" {
		check.Message = "output_dir is empty"
		return check
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		check.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return check
	}
	probe, err := os.CreateTemp(dir, ".meetingrec-probe-*")
	if err != nil {
		check.Message = fmt.Sprintf("%s is not writable: %v", dir, err)
		return check
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	check.Passed = true
	check.Message = dir
	return check
}

// checkDiskSpace verifies the volume holding dir has at least minMB free.
func checkDiskSpace(usage usageFunc, dir string, minMB uint64) Check {
	check := Check{Name: "disk_space", Required: true}

	free, err := freeMB(usage, dir)
	if err != nil {
		check.Message = fmt.Sprintf("unable to check disk space: %v", err)
		return check
	}
	if free < minMB {
		check.Message = fmt.Sprintf("insufficient disk space: %d MB free, minimum %d MB", free, minMB)
		return check
	}

	check.Passed = true
	check.Message = fmt.Sprintf("%d MB free", free)
	return check
}

func freeMB(usage usageFunc, dir string) (uint64, error) {
	target, err := nearestExisting(dir)
	if err != nil {
		return 0, err
	}
	stat, err := usage(target)
	if err != nil {
		return 0, err
	}
	return stat.Free / (1024 * 1024), nil
}

// nearestExisting walks up from dir to the first path that exists, so space
// can be measured before the output folder is created.
func nearestExisting(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("empty path")
	}
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(current); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing parent for %s", dir)
		}
		current = parent
	}
}

// DiskGuard refuses to start a session when the output volume is nearly full.
type DiskGuard struct {
	MinFreeMB uint64
	usage     usageFunc
}

func NewDiskGuard(minFreeMB int) *DiskGuard {
	return &DiskGuard{MinFreeMB: uint64(max(minFreeMB, 0)), usage: disk.Usage}
}

func (g *DiskGuard) Check(dir string) error {
	if g == nil || g.MinFreeMB == 0 {
		return nil
	}
	usage := g.usage
	if usage == nil {
		usage = disk.Usage
	}
	free, err := freeMB(usage, dir)
	if err != nil {
		return domain.E(domain.ErrorKindIOFailure, "storage.check", err)
	}
	if free < g.MinFreeMB {
		return domain.Errorf(domain.ErrorKindIOFailure, "storage.check", "insufficient disk space: %d MB free, minimum %d MB", free, g.MinFreeMB)
	}
	return nil
}
