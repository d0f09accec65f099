package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/clusteval/internal/object"
)

// Layout maps each managed kind to its base directory, relative to the
// repository root. Only kinds present in a layout get their own store.
type Layout map[*object.Kind]string

// StaticKinds are the compile-time kinds with a store in a full repository,
// in scan order.
var StaticKinds = []*object.Kind{
	object.DataSet,
	object.DataSetConfig,
	object.GoldStandard,
	object.GoldStandardConfig,
	object.DataConfig,
	object.Program,
	object.ProgramConfig,
	object.Run,
	object.RunResult,
	object.Clustering,
}

// DynamicKinds are the plugin families with a store in a full repository.
var DynamicKinds = []*object.Kind{
	object.DistanceMeasure,
	object.DataStatistic,
	object.RunStatistic,
	object.RunDataStatistic,
	object.DataSetGenerator,
	object.DataRandomizer,
	object.DataPreprocessor,
	object.RunResultPostprocessor,
	object.ClusteringQualityMeasure,
	object.ParameterOptimizationMethod,
	object.Context,
	object.DataSetType,
	object.DataSetFormat,
	object.RunResultFormat,
}

// DefaultLayout returns the directory structure of a full repository.
func DefaultLayout() Layout {
	return Layout{
		object.DataSet:            "data/datasets",
		object.DataSetConfig:      "data/datasets/configs",
		object.GoldStandard:       "data/goldstandards",
		object.GoldStandardConfig: "data/goldstandards/configs",
		object.DataConfig:         "data/configs",
		object.Program:            "programs",
		object.ProgramConfig:      "programs/configs",
		object.Run:                "runs",
		object.RunResult:          "results",
		// Clusterings are produced inside run results.
		object.Clustering: "results",

		object.DistanceMeasure:             "supp/distanceMeasures",
		object.DataStatistic:               "supp/statistics/data",
		object.RunStatistic:                "supp/statistics/run",
		object.RunDataStatistic:            "supp/statistics/rundata",
		object.DataSetGenerator:            "supp/generators/dataset",
		object.DataRandomizer:              "supp/randomizers/data",
		object.DataPreprocessor:            "supp/preprocessing",
		object.RunResultPostprocessor:      "supp/postprocessing",
		object.ClusteringQualityMeasure:    "supp/clustering/qualityMeasures",
		object.ParameterOptimizationMethod: "supp/clustering/paramOptimization",
		object.Context:                     "supp/contexts",
		object.DataSetType:                 "supp/types/dataset",
		object.DataSetFormat:               "supp/formats/dataset",
		object.RunResultFormat:             "supp/formats/runresult",
	}
}

// RunResultLayout returns the kinds a run-result repository keeps to
// itself. Every other kind is shared with the parent.
func RunResultLayout() Layout {
	return Layout{
		object.DataConfig:         "configs",
		object.DataSetConfig:      "configs",
		object.GoldStandardConfig: "configs",
		object.ProgramConfig:      "configs",
		object.Run:                "configs",
		object.DataSet:            "inputs",
		object.GoldStandard:       "goldstandards",
	}
}

// Path returns the absolute base path of kind under root, or "" when the
// layout has no entry for it.
func (l Layout) Path(root string, kind *object.Kind) string {
	rel, ok := l[kind]
	if !ok {
		return ""
	}
	return object.CanonicalPath(filepath.Join(root, filepath.FromSlash(rel)))
}

// Ensure creates every base directory of the layout under root.
func (l Layout) Ensure(root string) error {
	for kind := range l {
		dir := l.Path(root, kind)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s directory: %w", kind.Name(), err)
		}
	}
	return nil
}
