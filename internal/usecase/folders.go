package usecase

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

const DefaultFolderTemplate = "{{.Year}}-{{.Month}}-{{.Day}}-{{.Hour}}-{{.Minute}}-{{.Second}}-meeting"

type folderFields struct {
	Year, Month, Day, Hour, Minute, Second string
}

// allocateSessionDir creates a fresh directory for a session under root.
// Name collisions get a numeric suffix so two sessions never share a directory.
func allocateSessionDir(root, pattern string, now time.Time) (string, error) {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultFolderTemplate
	}
	tmpl, err := template.New("folder").Parse(pattern)
	if err != nil {
		return "", fmt.Errorf("parse folder template: %w", err)
	}

	var name strings.Builder
	if err := tmpl.Execute(&name, folderFields{
		Year:   now.Format("2006"),
		Month:  now.Format("01"),
		Day:    now.Format("02"),
		Hour:   now.Format("15"),
		Minute: now.Format("04"),
		Second: now.Format("05"),
	}); err != nil {
		return "", fmt.Errorf("render folder template: %w", err)
	}
	base := filepath.Base(filepath.Clean(strings.TrimSpace(name.String())))
	if base == "." || base == string(filepath.Separator) {
		return "", errors.New("folder template rendered an empty name")
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	for i := 1; i < 1000; i++ {
		candidate := base
		if i > 1 {
			candidate = fmt.Sprintf("%s_%d", base, i)
		}
		dir := filepath.Join(root, candidate)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free session directory for %q", base)
}
