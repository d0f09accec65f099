// Package manifest loads plugin class declarations from CUE files.
//
// A manifest declares one or more classes under the top-level plugin field:
//
//	plugin: ClusteringCoefficient: {
//		name:     "statistics.data.ClusteringCoefficient"
//		base:     "DataStatistic"
//		requires: ["igraph"]
//	}
//
// name defaults to the label. base must name a registered dynamic kind and,
// when the caller restricts the allowed kinds, one of those. requires lists
// the compute libraries the class needs before it may register.
package manifest
