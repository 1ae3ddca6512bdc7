package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Input limits for check arguments.
const (
	// MaxFileReadBytes is the largest file file_contains will read (10 MB).
	MaxFileReadBytes int64 = 10 * 1024 * 1024

	// MaxRegexLength caps user-supplied patterns.
	MaxRegexLength = 1024

	// MaxNameLength caps command, service and variable names.
	MaxNameLength = 256
)

var (
	serviceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_@.\-]+$`)
	commandNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.+\-]+$`)
	envVarNamePattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// validatePath expands a leading "~/" against home and requires the result to
// be absolute and free of ".." segments.
func validatePath(path, home string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path must not be empty")
	}

	// Checked before expansion; filepath.Join would clean "~/.." away.
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return "", fmt.Errorf("path traversal (..) not allowed in %q", path)
		}
	}

	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home == "" {
			return "", fmt.Errorf("cannot expand %q: home directory unknown", path)
		}
		path = filepath.Join(home, rest)
	}

	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("path must be absolute or start with ~/, got %q", path)
	}
	return filepath.Clean(path), nil
}

// readFileLimited reads a regular file of at most MaxFileReadBytes. Symlinks
// are followed; the fd is stat'ed after open so the checks apply to what is read.
func readFileLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot open file %q: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat file %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("refusing to read non-regular file %q (mode: %s)", path, info.Mode().Type())
	}
	if info.Size() > MaxFileReadBytes {
		return nil, fmt.Errorf("file %q too large: %d bytes (max: %d)", path, info.Size(), MaxFileReadBytes)
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxFileReadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading file %q: %w", path, err)
	}
	if int64(len(data)) > MaxFileReadBytes {
		return nil, fmt.Errorf("file %q exceeded size limit during read", path)
	}
	return data, nil
}

// validateRegexPattern compiles a pattern after length checks.
func validateRegexPattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern must not be empty")
	}
	if len(pattern) > MaxRegexLength {
		return nil, fmt.Errorf("pattern too long: %d chars (max: %d)", len(pattern), MaxRegexLength)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}
	return re, nil
}

func validateName(kind, name string, pattern *regexp.Regexp) error {
	if name == "" {
		return fmt.Errorf("%s name must not be empty", kind)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%s name too long: %d chars (max: %d)", kind, len(name), MaxNameLength)
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("%s name %q must not start with '-'", kind, name)
	}
	if !pattern.MatchString(name) {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	return nil
}

func validateServiceName(name string) error { return validateName("service", name, serviceNamePattern) }
func validateCommandName(name string) error { return validateName("command", name, commandNamePattern) }
func validateEnvVarName(name string) error  { return validateName("variable", name, envVarNamePattern) }

// VerifyCatalogDirectory checks that the capability catalog cannot be
// modified by other users. Returns a list of warnings (empty = secure).
func VerifyCatalogDirectory(dir string) []string {
	info, err := os.Lstat(dir)
	if err != nil {
		return []string{fmt.Sprintf("cannot stat catalog directory %q: %v", dir, err)}
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return []string{fmt.Sprintf("catalog directory %q is a symlink", dir)}
	}
	if !info.IsDir() {
		return []string{fmt.Sprintf("catalog path %q is not a directory", dir)}
	}

	var warnings []string
	perm := info.Mode().Perm()
	if perm&0o002 != 0 {
		warnings = append(warnings, fmt.Sprintf("catalog directory %q is world-writable (%04o)", dir, perm))
	}
	if perm&0o020 != 0 {
		warnings = append(warnings, fmt.Sprintf("catalog directory %q is group-writable (%04o)", dir, perm))
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return append(warnings, fmt.Sprintf("cannot resolve absolute path for %q: %v", dir, err))
	}

	walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("error accessing %q during walk: %v", path, err))
			return nil
		}
		warnings = append(warnings, verifyCatalogEntry(path, d, absDir)...)
		return nil
	})
	if walkErr != nil {
		warnings = append(warnings, fmt.Sprintf("walk error in catalog directory: %v", walkErr))
	}
	return warnings
}

// verifyCatalogEntry flags symlinks leaving the catalog and world-writable YAML.
func verifyCatalogEntry(path string, d os.DirEntry, absDir string) []string {
	if d.Type()&os.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(path)
		if err != nil {
			return []string{fmt.Sprintf("symlink %q cannot be resolved: %v", path, err)}
		}
		absTarget, _ := filepath.Abs(target)
		if absTarget != absDir && !strings.HasPrefix(absTarget, absDir+string(filepath.Separator)) {
			return []string{fmt.Sprintf("symlink %q points outside catalog directory (%s)", path, absTarget)}
		}
		return nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if d.IsDir() || (ext != ".yaml" && ext != ".yml") {
		return nil
	}
	fi, err := d.Info()
	if err != nil {
		return nil
	}
	if fi.Mode().Perm()&0o002 != 0 {
		return []string{fmt.Sprintf("capability file %q is world-writable (%04o)", path, fi.Mode().Perm())}
	}
	return nil
}
