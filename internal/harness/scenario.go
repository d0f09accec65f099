package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/clusteval/internal/object"
)

// MainRepository is the name of the repository created when a scenario
// declares none, and the default target of every step.
const MainRepository = "main"

// Scenario defines a lifecycle test scenario: a set of in-memory
// repositories, a flow of registration operations against them and
// assertions on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Repositories lists the repositories to create, parents first.
	// When empty a single repository named "main" is created at the
	// scenario root.
	Repositories []RepositorySpec `yaml:"repositories,omitempty"`

	// Compute enables the dependency gate. Without it every class passes.
	Compute *ComputeSpec `yaml:"compute,omitempty"`

	// Flow contains the operations to execute, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// RepositorySpec declares one repository of a scenario.
type RepositorySpec struct {
	Name string `yaml:"name"`

	// Root is relative to the scenario root. It defaults to the scenario
	// root for the first repository and to results/<name> of the parent
	// for run-result repositories.
	Root string `yaml:"root,omitempty"`

	// Parent names an earlier repository.
	Parent string `yaml:"parent,omitempty"`

	// RunResult creates a run-result repository below Parent.
	RunResult bool `yaml:"run_result,omitempty"`
}

// ComputeSpec configures the in-memory compute service behind the
// dependency gate.
type ComputeSpec struct {
	// Libraries are installed before the flow starts.
	Libraries []string `yaml:"libraries,omitempty"`
}

// FlowStep is one operation of the flow.
type FlowStep struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Repo names the target repository; defaults to "main".
	Repo string `yaml:"repo,omitempty"`

	// Kind is the kind name, e.g. "DataSet" or "DataStatistic".
	Kind string `yaml:"kind,omitempty"`

	// Path is relative to the target repository's root.
	Path string `yaml:"path,omitempty"`

	// Class is the qualified class name. For register on a dynamic kind it
	// is the class of the new instance.
	Class string `yaml:"class,omitempty"`

	// Requires lists the libraries a class registered by register_class
	// needs.
	Requires []string `yaml:"requires,omitempty"`

	// ChangeDate of the object or class. Zero takes the next value of the
	// scenario clock.
	ChangeDate int64 `yaml:"change_date,omitempty"`

	// To is the destination of move, and the dependency path of link.
	To string `yaml:"to,omitempty"`

	// Library is installed or uninstalled by install and uninstall.
	Library string `yaml:"library,omitempty"`

	// Message is the error returned by a listener added with fail_listener.
	Message string `yaml:"message,omitempty"`

	// Expect checks the completion of this step.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected completion of a step.
type ExpectClause struct {
	// Result is the expected boolean outcome.
	Result *bool `yaml:"result,omitempty"`

	// Error is the expected error category, e.g. "register_error:admit".
	// "none" requires that no error occurred.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Repo string `yaml:"repo,omitempty"`
	Kind string `yaml:"kind,omitempty"`
	Path string `yaml:"path,omitempty"`

	// Name is the object name looked up by find.
	Name string `yaml:"name,omitempty"`

	// Class is the qualified class name checked by class_registered.
	Class string `yaml:"class,omitempty"`

	// ChangeDate, when set, must match the registered object.
	ChangeDate int64 `yaml:"change_date,omitempty"`

	// Absent inverts registered, find and class_registered.
	Absent bool `yaml:"absent,omitempty"`

	// Trace and Op select trace lines for trace_count, e.g. "event" and
	// "remove".
	Trace string `yaml:"trace,omitempty"`
	Op    string `yaml:"op,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Lines is the expected order for trace_order, as "type:op" pairs.
	Lines []string `yaml:"lines,omitempty"`

	// Libraries are the expected missing libraries for missing.
	Libraries []string `yaml:"libraries,omitempty"`
}

// Flow operations.
const (
	OpRegister        = "register"
	OpUnregister      = "unregister"
	OpRemove          = "remove"
	OpMove            = "move"
	OpRegisterClass   = "register_class"
	OpUnregisterClass = "unregister_class"
	OpLink            = "link"
	OpFailListener    = "fail_listener"
	OpInstall         = "install"
	OpUninstall       = "uninstall"
)

// Assertion type constants.
const (
	AssertRegistered      = "registered"
	AssertFind            = "find"
	AssertClassRegistered = "class_registered"
	AssertTraceCount      = "trace_count"
	AssertTraceOrder      = "trace_order"
	AssertMissing         = "missing"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// repositories returns the declared repositories, or the implicit main
// repository.
func (s *Scenario) repositories() []RepositorySpec {
	if len(s.Repositories) == 0 {
		return []RepositorySpec{{Name: MainRepository}}
	}
	return s.Repositories
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Flow) == 0 {
		return errors.New("flow list is required and must be non-empty")
	}

	repos := make(map[string]bool)
	for i, r := range s.repositories() {
		if r.Name == "" {
			return fmt.Errorf("repositories[%d]: name is required", i)
		}
		if repos[r.Name] {
			return fmt.Errorf("repositories[%d]: duplicate name %q", i, r.Name)
		}
		if r.Parent != "" && !repos[r.Parent] {
			return fmt.Errorf("repositories[%d]: parent %q must be declared first", i, r.Parent)
		}
		if r.RunResult && r.Parent == "" {
			return fmt.Errorf("repositories[%d]: run_result requires a parent", i)
		}
		repos[r.Name] = true
	}
	if !repos[MainRepository] {
		return fmt.Errorf("a repository named %q is required", MainRepository)
	}

	for i, step := range s.Flow {
		if err := validateStep(step, repos); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if (step.Op == OpInstall || step.Op == OpUninstall) && s.Compute == nil {
			return fmt.Errorf("flow[%d]: %s requires a compute section", i, step.Op)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, repos); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}

	return nil
}

func validateStep(step FlowStep, repos map[string]bool) error {
	if step.Repo != "" && !repos[step.Repo] {
		return fmt.Errorf("unknown repository %q", step.Repo)
	}

	switch step.Op {
	case OpRegister, OpUnregister, OpRemove, OpFailListener:
		if err := requireKind(step.Kind); err != nil {
			return err
		}
		if step.Path == "" {
			return fmt.Errorf("%s requires path", step.Op)
		}
		if step.Op == OpRegister {
			kind, _ := object.LookupKind(step.Kind)
			if kind.Flavor() == object.Dynamic && step.Class == "" {
				return fmt.Errorf("register of %s requires class", step.Kind)
			}
		}
	case OpMove, OpLink:
		if err := requireKind(step.Kind); err != nil {
			return err
		}
		if step.Path == "" || step.To == "" {
			return fmt.Errorf("%s requires path and to", step.Op)
		}
	case OpRegisterClass, OpUnregisterClass:
		kind, err := lookupKind(step.Kind)
		if err != nil {
			return err
		}
		if kind.Flavor() != object.Dynamic {
			return fmt.Errorf("%s requires a dynamic kind, got %s", step.Op, step.Kind)
		}
		if step.Class == "" {
			return fmt.Errorf("%s requires class", step.Op)
		}
	case OpInstall, OpUninstall:
		if step.Library == "" {
			return fmt.Errorf("%s requires library", step.Op)
		}
	case "":
		return errors.New("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

func validateAssertion(a Assertion, repos map[string]bool) error {
	if a.Repo != "" && !repos[a.Repo] {
		return fmt.Errorf("unknown repository %q", a.Repo)
	}

	switch a.Type {
	case AssertRegistered:
		if a.Path == "" {
			return errors.New("registered requires path")
		}
	case AssertFind:
		if err := requireKind(a.Kind); err != nil {
			return err
		}
		if a.Name == "" {
			return errors.New("find requires name")
		}
	case AssertClassRegistered:
		if err := requireKind(a.Kind); err != nil {
			return err
		}
		if a.Class == "" {
			return errors.New("class_registered requires class")
		}
	case AssertTraceCount:
		if a.Trace == "" || a.Op == "" {
			return errors.New("trace_count requires trace and op")
		}
		if a.Count < 0 {
			return errors.New("count must be non-negative")
		}
	case AssertTraceOrder:
		if len(a.Lines) < 2 {
			return errors.New("trace_order requires at least two lines")
		}
	case AssertMissing:
	case "":
		return errors.New("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func requireKind(name string) error {
	_, err := lookupKind(name)
	return err
}

func lookupKind(name string) (*object.Kind, error) {
	if name == "" {
		return nil, errors.New("kind is required")
	}
	kind, ok := object.LookupKind(name)
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", name)
	}
	return kind, nil
}
