package rebuild

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lexandro/buildwatch/changeset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotate(t *testing.T) {
	s := Annotate(changeset.Snapshot{
		FilesAdded:   []string{"/p/src/a.tsx", "/p/src/b.scss"},
		FilesUpdated: []string{"/p/src/a.tsx"},
		FilesDeleted: []string{"/p/src/assets/logo.png"},
	})

	assert.Equal(t, []string{"/p/src/a.tsx", "/p/src/b.scss", "/p/src/assets/logo.png"}, s.FilesChanged)
	assert.Equal(t, []string{"png", "scss", "tsx"}, s.ChangedExtensions)
	assert.True(t, s.HasScriptChanges)
	assert.True(t, s.HasStyleChanges)
	assert.True(t, s.HasBuildChanges)
}

func TestAnnotate_ExtensionsSorted(t *testing.T) {
	s := Annotate(changeset.Snapshot{
		FilesUpdated: []string{"/p/src/a.tsx", "/p/src/b.css", "/p/src/c.tsx"},
	})
	assert.Equal(t, []string{"css", "tsx"}, s.ChangedExtensions)
}

func TestAnnotate_CopyOnly(t *testing.T) {
	s := Annotate(changeset.Snapshot{
		FilesUpdated:   []string{"/p/src/assets/logo.png"},
		HasCopyChanges: true,
	})
	assert.False(t, s.HasScriptChanges)
	assert.False(t, s.HasStyleChanges)
	assert.False(t, s.HasBuildChanges)
}

func TestEnvironment(t *testing.T) {
	env := Environment(changeset.Snapshot{
		ID:            "abc",
		ConfigUpdated: true,
		FilesAdded:    []string{"/p/a.ts", "/p/b.ts"},
	})
	assert.Contains(t, env, "BUILDWATCH_BUILD_ID=abc")
	assert.Contains(t, env, "BUILDWATCH_CONFIG_UPDATED=true")
	assert.Contains(t, env, "BUILDWATCH_COPY_CHANGES=false")
	assert.Contains(t, env, "BUILDWATCH_FILES_ADDED=/p/a.ts\n/p/b.ts")
	assert.Contains(t, env, "BUILDWATCH_DIRS_DELETED=")
}

func TestNewCommandBuilder(t *testing.T) {
	b, err := NewCommandBuilder(`npx stencil build --dev --config "my config.ts"`, "", nil, nil, testLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"npx", "stencil", "build", "--dev", "--config", "my config.ts"}, b.Args())

	_, err = NewCommandBuilder("   ", "", nil, nil, testLogger())
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = NewCommandBuilder(`echo "unterminated`, "", nil, nil, testLogger())
	assert.Error(t, err)
}

func TestCommandBuilder_ExportsSnapshot(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	var stdout bytes.Buffer
	b, err := NewCommandBuilder(`sh -c 'echo "$BUILDWATCH_BUILD_ID $BUILDWATCH_CONFIG_UPDATED"; pwd'`, dir, &stdout, os.Stderr, testLogger())
	require.NoError(t, err)

	require.NoError(t, b.Build(context.Background(), changeset.Snapshot{ID: "b-1", ConfigUpdated: true}))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "b-1 true", lines[0])
	resolved, _ := filepath.EvalSymlinks(dir)
	assert.Contains(t, []string{dir, resolved}, lines[1])
}

func TestCommandBuilder_Failure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	b, err := NewCommandBuilder(`sh -c 'exit 3'`, "", nil, nil, testLogger())
	require.NoError(t, err)

	err = b.Build(context.Background(), changeset.Snapshot{})
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestPrinter(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, "/p", true)

	require.NoError(t, p.Build(context.Background(), changeset.Snapshot{
		ID:            "0123456789abcdef",
		ConfigUpdated: true,
		DirsAdded:     []string{"/p/src/new"},
		FilesAdded:    []string{"/p/src/new/x.tsx"},
		FilesDeleted:  []string{"/p/src/old.css"},
	}))

	want := "build 01234567: config, +1 files, -1 files, +1 dirs\n" +
		"  * build config changed\n" +
		"  + src/new/\n" +
		"  + src/new/x.tsx\n" +
		"  - src/old.css\n"
	assert.Equal(t, want, out.String())
}

func TestMulti_StopsAtFirstFailure(t *testing.T) {
	var calls []string
	record := func(name string, err error) Builder {
		return BuilderFunc(func(context.Context, changeset.Snapshot) error {
			calls = append(calls, name)
			return err
		})
	}
	boom := errors.New("boom")
	m := Multi{record("a", nil), record("b", boom), record("c", nil)}

	err := m.Build(context.Background(), changeset.Snapshot{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, calls)
}
