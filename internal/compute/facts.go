package compute

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MissingDependency records that a class could not be loaded because a
// library was unavailable.
type MissingDependency struct {
	Class   string `json:"class"`
	Library string `json:"library"`
}

// Facts accumulates missing dependencies per class, deduplicated by
// library. Facts of a class are cleared when it loads successfully.
type Facts struct {
	mu      sync.Mutex
	byClass map[string][]string
}

// NewFacts creates an empty fact set.
func NewFacts() *Facts {
	return &Facts{byClass: make(map[string][]string)}
}

// Add records a missing library for class. Returns false if the fact was
// already known.
func (f *Facts) Add(class, library string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.byClass[class] {
		if l == library {
			return false
		}
	}
	f.byClass[class] = append(f.byClass[class], library)
	return true
}

// Clear drops every fact of class.
func (f *Facts) Clear(class string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byClass[class]; !ok {
		return false
	}
	delete(f.byClass, class)
	return true
}

// For returns the missing libraries of class in the order they were
// recorded.
func (f *Facts) For(class string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.byClass[class]...)
}

// Len returns the number of classes with missing dependencies.
func (f *Facts) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byClass)
}

// Snapshot returns all facts ordered by class, then recording order.
func (f *Facts) Snapshot() []MissingDependency {
	f.mu.Lock()
	defer f.mu.Unlock()

	classes := make([]string, 0, len(f.byClass))
	for c := range f.byClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	var out []MissingDependency
	for _, c := range classes {
		for _, l := range f.byClass[c] {
			out = append(out, MissingDependency{Class: c, Library: l})
		}
	}
	return out
}

// Report renders the consolidated, human-readable install hint. It is
// empty when nothing is missing.
func (f *Facts) Report() string {
	facts := f.Snapshot()
	if len(facts) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("The following optional library dependencies are not satisfied; the affected classes were not loaded:\n")

	seen := make(map[string]bool)
	var libs []string
	for _, m := range facts {
		fmt.Fprintf(&b, "  class %q requires the unavailable library %q\n", m.Class, m.Library)
		if !seen[m.Library] {
			seen[m.Library] = true
			libs = append(libs, fmt.Sprintf("%q", m.Library))
		}
	}
	fmt.Fprintf(&b, "Install them with: install.packages(c(%s))\n", strings.Join(libs, ","))
	return b.String()
}
