// Package delegate hands the process over to the foreground command.
package delegate

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var ErrEmptyCommand = errors.New("delegate: empty command")

// Command is the foreground process that replaces piperup.
type Command struct {
	Argv []string
	Dir  string
	Env  []string
}

// Exec changes to cmd.Dir, resolves cmd.Argv[0] against PATH and replaces
// the current process image. On success it does not return.
func Exec(cmd Command) error {
	if len(cmd.Argv) == 0 || cmd.Argv[0] == "" {
		return ErrEmptyCommand
	}
	if cmd.Dir != "" {
		if err := os.Chdir(cmd.Dir); err != nil {
			return fmt.Errorf("delegate: chdir %q: %w", cmd.Dir, err)
		}
	}
	path, err := exec.LookPath(cmd.Argv[0])
	if err != nil {
		return fmt.Errorf("delegate: %w", err)
	}
	env := cmd.Env
	if env == nil {
		env = os.Environ()
	}
	if err := execve(path, cmd.Argv, env); err != nil {
		return fmt.Errorf("delegate: exec %s: %w", path, err)
	}
	return nil
}

// AdjustPath prepends dir to this process's PATH when dir exists. A leading
// "~/" is expanded. It returns the directory that was added, if any.
func AdjustPath(dir string) (string, bool) {
	if dir == "" {
		return "", false
	}
	dir, err := ExpandHome(dir)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	_ = os.Setenv("PATH", PrependPath(os.Getenv("PATH"), dir))
	return dir, true
}

// PrependPath returns pathEnv with dir in front, unless it is already first.
func PrependPath(pathEnv, dir string) string {
	if pathEnv == "" {
		return dir
	}
	sep := string(filepath.ListSeparator)
	if first, _, _ := strings.Cut(pathEnv, sep); first == dir {
		return pathEnv
	}
	return dir + sep + pathEnv
}

func ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// ExecutableDir returns the directory holding the running binary, with
// symlinks resolved.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
