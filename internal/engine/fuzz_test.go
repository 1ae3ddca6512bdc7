package engine_test

import (
	"testing"

	"github.com/ancients-collective/rigup/internal/engine"
)

// FuzzValidateArgs checks the probe argument validator never panics.
func FuzzValidateArgs(f *testing.F) {
	f.Add("--hostname=github.com", 2)
	f.Add("", 1)
	f.Add("\x00", 1)
	f.Add("status", 5)
	f.Add("-V", 0)
	f.Add("--format={{.ServerVersion}}", 1)
	f.Add("arg with spaces", 10)
	f.Add("../../etc/shadow", 1)
	f.Add("=", 1)
	f.Add("-", 0)

	spec := engine.CommandSpec{
		AllowedFlags: []string{"-V", "--version", "--hostname", "--format"},
		MaxArgs:      2,
	}

	f.Fuzz(func(t *testing.T, arg string, maxArgs int) {
		s := spec
		s.MaxArgs = min(max(maxArgs, 0), 100)

		err := engine.ValidateArgs(s, []string{arg, arg})
		if err == nil && len(arg) > 0 && arg[0] != '-' && s.MaxArgs < 2 {
			t.Fatalf("two positionals accepted with MaxArgs=%d", s.MaxArgs)
		}
	})
}

// FuzzCheckArgs feeds arbitrary names and values through argument decoding.
func FuzzCheckArgs(f *testing.F) {
	f.Add("env_var_set", "name", "GH_TOKEN")
	f.Add("port_listening", "port", "65536")
	f.Add("file_exists", "path", "~/../etc")
	f.Add("command_succeeds", "command", "")
	f.Add("nope", "", "")

	registry := engine.NewFunctionRegistry(nil)

	f.Fuzz(func(t *testing.T, function, key, value string) {
		_ = registry.CheckArgs(function, map[string]interface{}{key: value})
	})
}
