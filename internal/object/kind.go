package object

import "sync"

// Flavor says which store variant manages a kind.
type Flavor int

const (
	// Static kinds have instances only; their types are fixed at compile time.
	Static Flavor = iota + 1
	// Dynamic kinds additionally carry plugin classes registered at runtime.
	Dynamic
)

func (f Flavor) String() string {
	switch f {
	case Static:
		return "static"
	case Dynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// Kind is a static type descriptor. Kinds form a tree through Parent;
// a kind with no store of its own is served by the nearest ancestor's store.
type Kind struct {
	name    string
	parent  *Kind
	flavor  Flavor
	lineage []*Kind
}

var (
	kindsMu sync.RWMutex
	kinds   = map[string]*Kind{}
	ordered []*Kind
)

// NewKind declares a kind. A child kind inherits its parent's flavor.
// Declaring a name twice returns the first declaration.
func NewKind(name string, flavor Flavor, parent *Kind) *Kind {
	kindsMu.Lock()
	defer kindsMu.Unlock()

	if k, ok := kinds[name]; ok {
		return k
	}

	k := &Kind{name: name, parent: parent, flavor: flavor}
	if parent != nil {
		k.flavor = parent.flavor
	}
	k.lineage = append([]*Kind{k}, parentLineage(parent)...)

	kinds[name] = k
	ordered = append(ordered, k)
	return k
}

func parentLineage(parent *Kind) []*Kind {
	if parent == nil {
		return nil
	}
	return parent.lineage
}

// LookupKind returns the declared kind with the given name.
func LookupKind(name string) (*Kind, bool) {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	k, ok := kinds[name]
	return k, ok
}

// Kinds returns every declared kind in declaration order.
func Kinds() []*Kind {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	out := make([]*Kind, len(ordered))
	copy(out, ordered)
	return out
}

// Name returns the kind name.
func (k *Kind) Name() string { return k.name }

// Parent returns the parent kind, or nil for a root kind.
func (k *Kind) Parent() *Kind { return k.parent }

// Flavor returns the store variant of the kind.
func (k *Kind) Flavor() Flavor { return k.flavor }

// Lineage returns the kind followed by its ancestors, nearest first.
// The returned slice must not be modified.
func (k *Kind) Lineage() []*Kind { return k.lineage }

// Is reports whether k is other or one of its descendants.
func (k *Kind) Is(other *Kind) bool {
	for _, l := range k.lineage {
		if l == other {
			return true
		}
	}
	return false
}

func (k *Kind) String() string { return k.name }

// Built-in static kinds.
var (
	DataSet            = NewKind("DataSet", Static, nil)
	DataSetConfig      = NewKind("DataSetConfig", Static, nil)
	GoldStandard       = NewKind("GoldStandard", Static, nil)
	GoldStandardConfig = NewKind("GoldStandardConfig", Static, nil)
	DataConfig         = NewKind("DataConfig", Static, nil)
	Program            = NewKind("Program", Static, nil)
	ProgramConfig      = NewKind("ProgramConfig", Static, nil)
	Clustering         = NewKind("Clustering", Static, nil)

	Run                      = NewKind("Run", Static, nil)
	ExecutionRun             = NewKind("ExecutionRun", Static, Run)
	ClusteringRun            = NewKind("ClusteringRun", Static, ExecutionRun)
	ParameterOptimizationRun = NewKind("ParameterOptimizationRun", Static, ExecutionRun)
	AnalysisRun              = NewKind("AnalysisRun", Static, Run)
	DataAnalysisRun          = NewKind("DataAnalysisRun", Static, AnalysisRun)
	RunAnalysisRun           = NewKind("RunAnalysisRun", Static, AnalysisRun)
	RunDataAnalysisRun       = NewKind("RunDataAnalysisRun", Static, AnalysisRun)

	RunResult                   = NewKind("RunResult", Static, nil)
	ExecutionRunResult          = NewKind("ExecutionRunResult", Static, RunResult)
	ClusteringRunResult         = NewKind("ClusteringRunResult", Static, ExecutionRunResult)
	ParameterOptimizationResult = NewKind("ParameterOptimizationResult", Static, ExecutionRunResult)
	AnalysisRunResult           = NewKind("AnalysisRunResult", Static, RunResult)
)

// Built-in dynamic (plugin) kinds.
var (
	DistanceMeasure             = NewKind("DistanceMeasure", Dynamic, nil)
	DataStatistic               = NewKind("DataStatistic", Dynamic, nil)
	RunStatistic                = NewKind("RunStatistic", Dynamic, nil)
	RunDataStatistic            = NewKind("RunDataStatistic", Dynamic, nil)
	DataSetFormat               = NewKind("DataSetFormat", Dynamic, nil)
	RunResultFormat             = NewKind("RunResultFormat", Dynamic, nil)
	DataSetType                 = NewKind("DataSetType", Dynamic, nil)
	ClusteringQualityMeasure    = NewKind("ClusteringQualityMeasure", Dynamic, nil)
	ParameterOptimizationMethod = NewKind("ParameterOptimizationMethod", Dynamic, nil)
	Context                     = NewKind("Context", Dynamic, nil)
	DataSetGenerator            = NewKind("DataSetGenerator", Dynamic, nil)
	DataRandomizer              = NewKind("DataRandomizer", Dynamic, nil)
	DataPreprocessor            = NewKind("DataPreprocessor", Dynamic, nil)
	RunResultPostprocessor      = NewKind("RunResultPostprocessor", Dynamic, nil)
)
