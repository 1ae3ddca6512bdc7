package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		home    string
		want    string
		wantErr string
	}{
		{"absolute", "/etc/gitconfig", "", "/etc/gitconfig", ""},
		{"trailing slash cleaned", "/home/dev/.config/", "", "/home/dev/.config", ""},
		{"home expansion", "~/.docker/config.json", "/home/dev", "/home/dev/.docker/config.json", ""},
		{"empty", "", "", "", "must not be empty"},
		{"relative", ".config/gh/hosts.yml", "", "", "must be absolute"},
		{"bare tilde user", "~root/.ssh", "/home/dev", "", "must be absolute"},
		{"home unknown", "~/.netrc", "", "", "home directory unknown"},
		{"traversal", "/home/dev/../../etc/shadow", "", "", "path traversal"},
		{"traversal after expansion", "~/../root/.ssh", "/home/dev", "", "path traversal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validatePath(tt.path, tt.home)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateRegexPattern(t *testing.T) {
	_, err := validateRegexPattern("")
	assert.ErrorContains(t, err, "must not be empty")

	_, err = validateRegexPattern(strings.Repeat("a", MaxRegexLength+1))
	assert.ErrorContains(t, err, "too long")

	_, err = validateRegexPattern("(unclosed")
	assert.ErrorContains(t, err, "invalid regex")

	re, err := validateRegexPattern(`^Logged in to github\.com`)
	require.NoError(t, err)
	assert.True(t, re.MatchString("Logged in to github.com account dev"))
}

func TestValidateNames(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(string) error
		input   string
		wantErr bool
	}{
		{"service plain", validateServiceName, "docker", false},
		{"service template", validateServiceName, "getty@tty1.service", false},
		{"service injection", validateServiceName, "docker;reboot", true},
		{"service flag", validateServiceName, "--now", true},
		{"service empty", validateServiceName, "", true},
		{"service too long", validateServiceName, strings.Repeat("a", MaxNameLength+1), true},
		{"command plain", validateCommandName, "gcloud", false},
		{"command with plus", validateCommandName, "g++", false},
		{"command path", validateCommandName, "/usr/bin/gh", true},
		{"command space", validateCommandName, "gh auth", true},
		{"env plain", validateEnvVarName, "GOOGLE_APPLICATION_CREDENTIALS", false},
		{"env leading underscore", validateEnvVarName, "_TOKEN", false},
		{"env leading digit", validateEnvVarName, "1PASSWORD", true},
		{"env dash", validateEnvVarName, "AZ-TOKEN", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReadFileLimited_ReadsNormalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts.yml")
	require.NoError(t, os.WriteFile(path, []byte("github.com:\n  user: dev\n"), 0o600))

	data, err := readFileLimited(path)

	require.NoError(t, err)
	assert.Equal(t, "github.com:\n  user: dev\n", string(data))
}

func TestReadFileLimited_FollowsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	require.NoError(t, os.WriteFile(target, []byte("content"), 0o600))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	data, err := readFileLimited(link)

	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestReadFileLimited_RejectsNonRegular(t *testing.T) {
	_, err := readFileLimited(t.TempDir())
	assert.ErrorContains(t, err, "non-regular")

	if _, statErr := os.Stat("/dev/null"); statErr == nil {
		_, err = readFileLimited("/dev/null")
		assert.ErrorContains(t, err, "non-regular")
	}
}

func TestReadFileLimited_Missing(t *testing.T) {
	_, err := readFileLimited(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "file not found")
}

// ── catalog directory verification ───────────────────────────────────

func writeCapabilityFile(t *testing.T, dir, name string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("id: x\n"), 0o600))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestVerifyCatalogDirectory_CleanDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o755))
	writeCapabilityFile(t, dir, "github.yaml", 0o644)

	assert.Empty(t, VerifyCatalogDirectory(dir))
}

func TestVerifyCatalogDirectory_NonExistent(t *testing.T) {
	warnings := VerifyCatalogDirectory(filepath.Join(t.TempDir(), "missing"))

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "cannot stat")
}

func TestVerifyCatalogDirectory_NotADirectory(t *testing.T) {
	path := writeCapabilityFile(t, t.TempDir(), "github.yaml", 0o644)

	warnings := VerifyCatalogDirectory(path)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "not a directory")
}

func TestVerifyCatalogDirectory_Writable(t *testing.T) {
	tests := []struct {
		name string
		perm os.FileMode
		want string
	}{
		{"world", 0o777, "world-writable"},
		{"group", 0o775, "group-writable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.Chmod(dir, tt.perm))

			warnings := VerifyCatalogDirectory(dir)

			assert.True(t, hasWarning(warnings, tt.want), "got: %v", warnings)
		})
	}
}

func TestVerifyCatalogDirectory_WorldWritableYAML(t *testing.T) {
	dir := t.TempDir()
	writeCapabilityFile(t, dir, "docker.yml", 0o666)
	writeCapabilityFile(t, dir, "notes.txt", 0o666)

	warnings := VerifyCatalogDirectory(dir)

	require.Len(t, warnings, 1, "only YAML files are checked")
	assert.Contains(t, warnings[0], "docker.yml")
}

func TestVerifyCatalogDirectory_Symlinks(t *testing.T) {
	outside := writeCapabilityFile(t, t.TempDir(), "evil.yaml", 0o644)
	dir := t.TempDir()
	inside := writeCapabilityFile(t, dir, "github.yaml", 0o644)
	require.NoError(t, os.Symlink(inside, filepath.Join(dir, "gh.yaml")))
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "evil.yaml")))

	warnings := VerifyCatalogDirectory(dir)

	require.Len(t, warnings, 1, "got: %v", warnings)
	assert.Contains(t, warnings[0], "points outside catalog directory")
}

func TestVerifyCatalogDirectory_SymlinkedRoot(t *testing.T) {
	real := t.TempDir()
	link := filepath.Join(t.TempDir(), "catalog")
	require.NoError(t, os.Symlink(real, link))

	warnings := VerifyCatalogDirectory(link)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "is a symlink")
}
