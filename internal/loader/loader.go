// Package loader reads and validates capability definitions from YAML.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ancients-collective/rigup/internal/types"
)

// idPattern matches valid capability and check IDs.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Functions is the set of check functions a definition may reference.
// *engine.FunctionRegistry satisfies it.
type Functions interface {
	FunctionNames() []string
	CheckArgs(name string, args map[string]interface{}) error
}

// Loader reads YAML capability definitions and validates them against the
// schema and the available check functions.
type Loader struct {
	validate  *validator.Validate
	functions Functions
}

// New creates a Loader. A nil Functions rejects every step function.
func New(functions Functions) *Loader {
	v := validator.New()
	_ = v.RegisterValidation("rigup_id", func(fl validator.FieldLevel) bool {
		return idPattern.MatchString(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if functions == nil {
		functions = FunctionNames()
	}
	return &Loader{validate: v, functions: functions}
}

// LoadCapability reads a YAML file and returns a validated definition.
func (l *Loader) LoadCapability(path string) (types.CapabilityDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.CapabilityDefinition{}, fmt.Errorf("failed to read %q: %w", path, err)
	}
	return l.parse(path, data)
}

func (l *Loader) parse(name string, data []byte) (types.CapabilityDefinition, error) {
	var def types.CapabilityDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return types.CapabilityDefinition{}, fmt.Errorf("failed to parse YAML in %q: %w", name, err)
	}
	if err := l.validateCapability(def); err != nil {
		return types.CapabilityDefinition{}, err
	}
	return def, nil
}

// LoadDirectory recursively loads all .yaml and .yml files under dir.
// Loading continues past individual file failures; symlinks are skipped and
// reported. Duplicate capability ids are rejected.
func (l *Loader) LoadDirectory(dir string) ([]types.CapabilityDefinition, []error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, []error{fmt.Errorf("failed to walk directory %q: %w", dir, err)}
	}
	caps, errs := l.LoadFromFS(os.DirFS(dir))
	for i, err := range errs {
		errs[i] = fmt.Errorf("%s: %w", dir, err)
	}
	return caps, errs
}

// LoadFromFS loads every YAML file in fsys, in lexical path order.
func (l *Loader) LoadFromFS(fsys fs.FS) ([]types.CapabilityDefinition, []error) {
	var caps []types.CapabilityDefinition
	var errs []error
	seen := make(map[string]string) // capability ID → file path

	walkErr := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, fmt.Errorf("error accessing %q: %w", p, err))
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			errs = append(errs, fmt.Errorf("skipping symlink: %s", p))
			return nil
		}
		if d.IsDir() || !isYAML(p) {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to read %q: %w", p, err))
			return nil
		}
		def, err := l.parse(p, data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			return nil
		}

		if prev, dup := seen[def.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate capability ID %q: first defined in %s, duplicated in %s", def.ID, prev, p))
			return nil
		}
		seen[def.ID] = p
		caps = append(caps, def)
		return nil
	})
	if walkErr != nil {
		errs = append(errs, fmt.Errorf("failed to walk catalog: %w", walkErr))
	}
	return caps, errs
}

// ValidateOnly loads a YAML file and validates it without evaluating it.
func (l *Loader) ValidateOnly(path string) error {
	_, err := l.LoadCapability(path)
	return err
}

// ValidateDirectory validates every YAML file under dir and returns all errors.
func (l *Loader) ValidateDirectory(dir string) []error {
	_, errs := l.LoadDirectory(dir)
	return errs
}

// validateCapability runs schema validation followed by the checks struct
// tags cannot express.
func (l *Loader) validateCapability(def types.CapabilityDefinition) error {
	if err := l.validate.Struct(def); err != nil {
		return formatValidationErrors(err)
	}

	checkIDs := make(map[string]int, len(def.Checks))
	for i, check := range def.Checks {
		if prev, dup := checkIDs[check.ID]; dup {
			return fmt.Errorf("checks[%d]: duplicate check ID %q (also checks[%d])", i, check.ID, prev)
		}
		checkIDs[check.ID] = i

		for j, step := range check.Steps {
			if !slices.Contains(l.functions.FunctionNames(), step.Function) {
				return fmt.Errorf("check %q step %d: unknown function %q (known functions: %s)",
					check.ID, j+1, step.Function, strings.Join(l.functions.FunctionNames(), ", "))
			}
			if err := l.functions.CheckArgs(step.Function, step.Args); err != nil {
				return fmt.Errorf("check %q step %d: %w", check.ID, j+1, err)
			}
			if err := validateCondition(step.When); err != nil {
				return fmt.Errorf("check %q step %d: %w", check.ID, j+1, err)
			}
		}
	}
	return nil
}

var validEnvironments = []string{types.EnvContainer, types.EnvVM, types.EnvBareMetal}

func validateCondition(cond *types.ConditionBlock) error {
	if cond == nil {
		return nil
	}
	if cond.OS != "" && cond.OS != "linux" && cond.OS != "darwin" {
		return fmt.Errorf("when.os: invalid value %q (must be linux or darwin)", cond.OS)
	}
	if cond.Environment != "" && !slices.Contains(validEnvironments, cond.Environment) {
		return fmt.Errorf("when.environment: invalid value %q (must be one of %s)",
			cond.Environment, strings.Join(validEnvironments, ", "))
	}
	return nil
}

// formatValidationErrors converts validator errors into readable messages.
func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, formatFieldError(fe))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(messages, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := fieldPath(fe.Namespace())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "rigup_id":
		return fmt.Sprintf("%s must be alphanumeric with underscores and hyphens only", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// fieldPath drops the root struct name from a validator namespace, so
// "CapabilityDefinition.checks[0].label" becomes "checks[0].label".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func isYAML(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	return ext == ".yaml" || ext == ".yml"
}

// nameList is a Functions that knows names but accepts any arguments.
type nameList []string

func (n nameList) FunctionNames() []string { return slices.Sorted(slices.Values(n)) }
func (n nameList) CheckArgs(string, map[string]interface{}) error {
	return nil
}

// FunctionNames returns a Functions that accepts the given names with any
// arguments. Useful when only the schema matters.
func FunctionNames(names ...string) Functions {
	return nameList(names)
}
