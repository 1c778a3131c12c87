// Package tools locates the ffmpeg and ffprobe binaries.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/smazurov/reframer/internal/logging"
)

// DiagnosticsFile is the optional JSON file naming the binaries.
const DiagnosticsFile = "ffmpeg_full_diagnostics.json"

// ErrToolNotFound is returned when a binary cannot be resolved.
var ErrToolNotFound = errors.New("tool not found")

// Tools holds resolved binary paths. It is passed explicitly to the
// components that launch processes.
type Tools struct {
	FFmpeg  string
	FFprobe string
}

// Options controls resolution. Explicit paths win, then the diagnostics
// file, then <dir>/ffmpeg/bin under each search dir, then PATH.
type Options struct {
	FFmpeg          string
	FFprobe         string
	DiagnosticsFile string
	SearchDirs      []string
}

type diagnostics struct {
	Components map[string]struct {
		Path string `json:"path"`
	} `json:"components"`
}

// Resolve finds both binaries.
func Resolve(opts Options) (*Tools, error) {
	logger := logging.GetLogger("tools")

	diagPath := opts.DiagnosticsFile
	if diagPath == "" {
		diagPath = DiagnosticsFile
	}
	diag, err := readDiagnostics(diagPath)
	if err != nil {
		logger.Warn("Ignoring diagnostics file", "path", diagPath, "error", err)
	}

	ffmpeg, err := resolveOne("ffmpeg", opts.FFmpeg, diag, opts.SearchDirs)
	if err != nil {
		return nil, err
	}
	ffprobe, err := resolveOne("ffprobe", opts.FFprobe, diag, opts.SearchDirs)
	if err != nil {
		return nil, err
	}

	logger.Info("Resolved tools", "ffmpeg", ffmpeg, "ffprobe", ffprobe)
	return &Tools{FFmpeg: ffmpeg, FFprobe: ffprobe}, nil
}

func readDiagnostics(path string) (*diagnostics, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var d diagnostics
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &d, nil
}

func resolveOne(name, explicit string, diag *diagnostics, searchDirs []string) (string, error) {
	if explicit != "" {
		if path, ok := lookup(explicit); ok {
			return path, nil
		}
		return "", fmt.Errorf("%w: %s at %s", ErrToolNotFound, name, explicit)
	}

	if diag != nil {
		if c, ok := diag.Components[name]; ok && c.Path != "" {
			if path, ok := lookup(c.Path); ok {
				return path, nil
			}
		}
	}

	for _, dir := range searchDirs {
		if path, ok := isExecutable(filepath.Join(dir, "ffmpeg", "bin", binaryName(name))); ok {
			return path, nil
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("%w: %s (set --%s or add it to PATH)", ErrToolNotFound, name, name)
}

// lookup accepts either a path or a bare command name.
func lookup(p string) (string, bool) {
	if filepath.Base(p) == p {
		if path, err := exec.LookPath(p); err == nil {
			return path, true
		}
		return "", false
	}
	return isExecutable(p)
}

func isExecutable(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return "", false
	}
	return path, true
}

func binaryName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}
