package rebuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/lexandro/buildwatch/changeset"
)

// Environment variables exported to the build command.
const (
	EnvBuildID       = "BUILDWATCH_BUILD_ID"
	EnvConfigUpdated = "BUILDWATCH_CONFIG_UPDATED"
	EnvCopyChanges   = "BUILDWATCH_COPY_CHANGES"
	EnvBuildChanges  = "BUILDWATCH_BUILD_CHANGES"
	EnvFilesAdded    = "BUILDWATCH_FILES_ADDED"
	EnvFilesUpdated  = "BUILDWATCH_FILES_UPDATED"
	EnvFilesDeleted  = "BUILDWATCH_FILES_DELETED"
	EnvDirsAdded     = "BUILDWATCH_DIRS_ADDED"
	EnvDirsDeleted   = "BUILDWATCH_DIRS_DELETED"
	EnvChangedExts   = "BUILDWATCH_CHANGED_EXTENSIONS"
	EnvScriptChanges = "BUILDWATCH_SCRIPT_CHANGES"
	EnvStyleChanges  = "BUILDWATCH_STYLE_CHANGES"
)

// ErrEmptyCommand is returned when no build command is configured.
var ErrEmptyCommand = errors.New("build command empty")

// CommandBuilder runs an external build command once per snapshot.
type CommandBuilder struct {
	args   []string
	dir    string
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// NewCommandBuilder splits command with shell quoting rules. The command runs
// in dir with its output sent to stdout and stderr.
func NewCommandBuilder(command string, dir string, stdout, stderr io.Writer, logger *slog.Logger) (*CommandBuilder, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parsing build command: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return &CommandBuilder{
		args:   args,
		dir:    dir,
		stdout: stdout,
		stderr: stderr,
		logger: logger,
	}, nil
}

// Args returns the parsed command line.
func (b *CommandBuilder) Args() []string {
	return append([]string(nil), b.args...)
}

// Build runs the command with the snapshot exported through the environment.
func (b *CommandBuilder) Build(ctx context.Context, snapshot changeset.Snapshot) error {
	cmd := exec.CommandContext(ctx, b.args[0], b.args[1:]...)
	cmd.Dir = b.dir
	cmd.Env = append(os.Environ(), Environment(snapshot)...)
	cmd.Stdout = b.stdout
	cmd.Stderr = b.stderr

	b.logger.Debug("running build command", "args", b.args, "id", snapshot.ID)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w", b.args[0], err)
	}
	return nil
}

// Environment renders a snapshot as KEY=VALUE pairs. Path lists are
// newline separated.
func Environment(s changeset.Snapshot) []string {
	list := func(paths []string) string { return strings.Join(paths, "\n") }
	return []string{
		EnvBuildID + "=" + s.ID,
		EnvConfigUpdated + "=" + strconv.FormatBool(s.ConfigUpdated),
		EnvCopyChanges + "=" + strconv.FormatBool(s.HasCopyChanges),
		EnvBuildChanges + "=" + strconv.FormatBool(s.HasBuildChanges),
		EnvScriptChanges + "=" + strconv.FormatBool(s.HasScriptChanges),
		EnvStyleChanges + "=" + strconv.FormatBool(s.HasStyleChanges),
		EnvFilesAdded + "=" + list(s.FilesAdded),
		EnvFilesUpdated + "=" + list(s.FilesUpdated),
		EnvFilesDeleted + "=" + list(s.FilesDeleted),
		EnvDirsAdded + "=" + list(s.DirsAdded),
		EnvDirsDeleted + "=" + list(s.DirsDeleted),
		EnvChangedExts + "=" + strings.Join(s.ChangedExtensions, ","),
	}
}
