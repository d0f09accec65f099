// Package harness runs repository lifecycle scenarios and records what the
// stores did as a deterministic trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	repositories:
//	  - name: main
//	  - name: r1
//	    parent: main
//	    run_result: true
//	compute:
//	  libraries: [cluster]
//	flow:
//	  - op: register
//	    kind: DataSet
//	    path: data/datasets/iris.txt
//	    change_date: 10
//	    expect:
//	      result: true
//	  - op: remove
//	    kind: DataSet
//	    path: data/datasets/iris.txt
//	assertions:
//	  - type: registered
//	    path: data/datasets/iris.txt
//	    absent: true
//	  - type: trace_order
//	    lines: ["mirror:unregister", "event:remove"]
//
// # Operations
//
// register, unregister, remove and move address objects by kind and path.
// register_class and unregister_class address plugin classes of a dynamic
// kind. link makes the object at path follow the object at to.
// fail_listener subscribes a listener that always fails. install and
// uninstall change the libraries of the compute service.
//
// # Assertion Types
//
//   - registered: an object (or none, with absent) is registered at path
//   - find: an object of kind is found by name
//   - class_registered: a class is visible in the dynamic store of kind
//   - missing: the repository recorded exactly these missing libraries
//   - trace_count: a trace line type and op appear exactly N times
//   - trace_order: "type:op" lines appear in the given order
//
// # Deterministic Testing
//
// Repositories live below the fixed root "/scenario" and never touch the
// disk. Sequence numbers and default change dates come from
// testutil.DeterministicClock, and paths in the trace are relative to the
// root, so the same scenario always yields the same trace.
package harness
