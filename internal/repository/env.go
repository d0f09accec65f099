package repository

import (
	"log/slog"

	"github.com/roach88/clusteval/internal/entity"
	"github.com/roach88/clusteval/internal/object"
)

// Env bundles the process-wide services shared by all repositories.
type Env struct {
	Directory *Directory
	Classes   *entity.ClassSet
	Hub       *object.Hub
	Logger    *slog.Logger
}

// NewEnv creates a fresh set of process services.
func NewEnv() *Env {
	return &Env{
		Directory: NewDirectory(),
		Classes:   entity.NewClassSet(),
		Hub:       object.NewHub(),
		Logger:    slog.Default(),
	}
}

func (e *Env) withDefaults() *Env {
	if e == nil {
		return NewEnv()
	}
	out := *e
	if out.Directory == nil {
		out.Directory = NewDirectory()
	}
	if out.Classes == nil {
		out.Classes = entity.NewClassSet()
	}
	if out.Hub == nil {
		out.Hub = object.NewHub()
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}
