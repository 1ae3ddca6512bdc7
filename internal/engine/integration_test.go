package engine_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ancients-collective/rigup/capabilities"
	"github.com/ancients-collective/rigup/internal/engine"
	"github.com/ancients-collective/rigup/internal/loader"
	"github.com/ancients-collective/rigup/internal/types"
)

// These tests wire registry, loader and health service together without fakes.

func linuxHost() types.SystemContext {
	return types.SystemContext{
		OS:          types.OSInfo{Name: "linux", Arch: "amd64"},
		Distro:      types.DistroInfo{ID: "debian", Family: "debian"},
		Environment: types.EnvInfo{Type: "bare-metal"},
	}
}

func TestIntegration_BuiltinCatalogLoads(t *testing.T) {
	registry := engine.NewFunctionRegistry(nil)

	caps, errs := loader.New(registry).LoadFromFS(capabilities.FS)

	require.Empty(t, errs)
	ids := make([]string, 0, len(caps))
	for _, c := range caps {
		ids = append(ids, c.ID)
		for _, check := range c.Checks {
			for _, step := range check.Steps {
				assert.NoError(t, registry.CheckArgs(step.Function, step.Args), "%s/%s", c.ID, check.ID)
			}
		}
	}
	assert.ElementsMatch(t, []string{"github", "gcloud", "azure", "vercel", "python", "docker", "agent-tools"}, ids)
}

func TestIntegration_BuiltinProbesAreAllowlisted(t *testing.T) {
	registry := engine.NewFunctionRegistry(nil)
	executor := engine.NewAllowlistExecutor()
	caps, errs := loader.New(registry).LoadFromFS(capabilities.FS)
	require.Empty(t, errs)

	for _, c := range caps {
		for _, check := range c.Checks {
			for _, step := range check.Steps {
				if step.Function != "command_succeeds" && step.Function != "command_output_contains" {
					continue
				}
				cmd, _ := step.Args["command"].(string)
				assert.True(t, executor.IsAllowed(cmd), "%s/%s probes %q", c.ID, check.ID, cmd)
			}
		}
	}
}

func TestIntegration_HealthOfBuiltinCapability(t *testing.T) {
	registry := engine.NewFunctionRegistry(nil, engine.WithLookPath(func(string) (string, error) {
		return "", exec.ErrNotFound
	}))
	caps, errs := loader.New(registry).LoadFromFS(capabilities.FS)
	require.Empty(t, errs)

	res, err := engine.NewHealthService(caps, registry, linuxHost(), nil).Health(context.Background(), "agent-tools")
	require.NoError(t, err)

	ids := make([]string, len(res.Checks))
	for i, c := range res.Checks {
		ids[i] = c.ID
		assert.False(t, c.OK, "%s: nothing is on PATH", c.ID)
		assert.Contains(t, c.Message, "not found on PATH")
	}
	assert.Equal(t, []string{"git_cli", "jq_cli", "tmux_cli", "ripgrep_cli"}, ids)
	assert.Len(t, res.Missing(), 3, "ripgrep is optional")
}

func TestIntegration_DirectoryLoadAndEvaluate(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(marker, []byte(`{"type":"service_account"}`), 0o600))

	yamlContent := `id: cloud_sdk
name: Cloud SDK credentials
description: Service account credentials on disk
checks:
  - id: creds_file
    label: Credentials present
    steps:
      - function: file_exists
        args:
          path: "` + marker + `"
      - function: file_contains
        args:
          path: "` + marker + `"
          pattern: service_account
  - id: creds_env
    label: Credentials exported
    hint: export GOOGLE_APPLICATION_CREDENTIALS
    steps:
      - function: env_var_set
        args:
          name: GOOGLE_APPLICATION_CREDENTIALS
  - id: darwin_keychain
    label: Keychain entry
    supported_os: [darwin]
    steps:
      - function: file_exists
        args:
          path: ~/Library/Keychains
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cloud.yaml"), []byte(yamlContent), 0o644))

	registry := engine.NewFunctionRegistry(nil, engine.WithLookupEnv(func(string) (string, bool) { return "", false }))
	caps, errs := loader.New(registry).LoadDirectory(dir)
	require.Empty(t, errs)
	require.Len(t, caps, 1)

	svc := engine.NewHealthService(caps, registry, linuxHost(), nil)
	res, err := svc.Health(context.Background(), "cloud_sdk")
	require.NoError(t, err)

	require.Len(t, res.Checks, 3)
	assert.True(t, res.Checks[0].OK)
	assert.Contains(t, res.Checks[0].Message, "service_account")
	assert.False(t, res.Checks[1].OK)
	assert.Equal(t, "export GOOGLE_APPLICATION_CREDENTIALS", res.Checks[1].Hint)
	assert.True(t, res.Checks[2].Skipped)

	missing := res.Missing()
	require.Len(t, missing, 1)
	assert.Equal(t, "creds_env", missing[0].ID)
}

func TestIntegration_InvalidArgsRejectedAtLoadTime(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `id: bad_port
name: Bad port
description: Port outside the valid range
checks:
  - id: api_port
    label: API listening
    steps:
      - function: port_listening
        args:
          port: 99999
`
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	err := loader.New(engine.NewFunctionRegistry(nil)).ValidateOnly(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}
