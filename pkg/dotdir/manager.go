// Package dotdir manages the .medibot/ and ~/.medibot directories.
//
// The directory holds config.toml, the default file session store and the
// chat state that lets "medibot chat" resume the last conversation.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the medibot directory.
	dirName = ".medibot"

	// HomeEnv names an environment variable that replaces the local and
	// home lookups.
	HomeEnv = "MEDIBOT_HOME"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .medibot/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. $MEDIBOT_HOME
//  3. Local ./.medibot/ dir
//  4. Home ~/.medibot/ dir, created if missing
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case os.Getenv(HomeEnv) != "":
		dir = os.Getenv(HomeEnv)

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating medibot directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// Resolve joins a relative path onto the target directory. Absolute paths
// are returned unchanged.
func (m *Manager) Resolve(overrideDir, path string) (string, error) {
	if path == "" || filepath.IsAbs(path) {
		return path, nil
	}
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, path), nil
}

// localDirExists checks whether a .medibot/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
