package object

import "strings"

// Class is a dynamically discovered plugin type.
type Class struct {
	// Name is the fully qualified class name, e.g. "statistics.data.Diameter".
	Name string
	// SimpleName is the last dotted segment of Name unless set explicitly.
	SimpleName string
	// Base is the dynamic kind the class extends.
	Base *Kind
	// Requires lists optional runtime libraries the class needs.
	Requires []string
	// Source is the manifest the class was declared in.
	Source     string
	ChangeDate ChangeDate
}

// NewClass creates a class descriptor, deriving SimpleName from name.
func NewClass(name string, base *Kind, requires ...string) *Class {
	return &Class{
		Name:       name,
		SimpleName: SimpleName(name),
		Base:       base,
		Requires:   requires,
	}
}

// SimpleName returns the segment after the last dot of a qualified name.
func SimpleName(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

func (c *Class) String() string { return c.Name }
