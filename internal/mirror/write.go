package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/roach88/clusteval/internal/object"
)

type opKind string

const (
	opRegister        opKind = "register"
	opUpdate          opKind = "update"
	opUnregister      opKind = "unregister"
	opRegisterClass   opKind = "register_class"
	opUnregisterClass opKind = "unregister_class"
)

// op is one pending write. Everything it needs is copied at enqueue time,
// so a later Move of the object does not change what gets written.
type op struct {
	kind       opKind
	seq        int64
	repository string
	subject    string
	objKind    string
	typeName   string
	name       string
	changeDate int64

	simpleName string
	requires   []string
	source     string
}

func objectOp(kind opKind, obj object.Object) op {
	return op{
		kind:       kind,
		repository: obj.Repository(),
		subject:    obj.Path(),
		objKind:    obj.Kind().Name(),
		typeName:   obj.TypeName(),
		name:       obj.Name(),
		changeDate: int64(obj.ChangeDate()),
	}
}

func classOp(kind opKind, repository string, class *object.Class) op {
	return op{
		kind:       kind,
		repository: repository,
		subject:    class.Name,
		objKind:    class.Base.Name(),
		simpleName: class.SimpleName,
		requires:   class.Requires,
		source:     class.Source,
		changeDate: int64(class.ChangeDate),
	}
}

// apply writes o and its journal entry in one transaction.
func (m *SQLite) apply(o op) (err error) {
	ctx, span := m.tracer.Start(context.Background(), "mirror."+string(o.kind))
	span.SetAttributes(
		attribute.String("repository", o.repository),
		attribute.String("subject", o.subject),
		attribute.String("kind", o.objKind),
		attribute.Int64("seq", o.seq),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	switch o.kind {
	case opRegister, opUpdate:
		err = writeObject(ctx, tx, o)
	case opUnregister:
		_, err = tx.ExecContext(ctx,
			`DELETE FROM objects WHERE repository = ? AND path = ?`,
			o.repository, o.subject)
	case opRegisterClass:
		err = writeClass(ctx, tx, o)
	case opUnregisterClass:
		_, err = tx.ExecContext(ctx,
			`DELETE FROM classes WHERE repository = ? AND name = ?`,
			o.repository, o.subject)
	default:
		err = fmt.Errorf("unknown op %q", o.kind)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", o.kind, o.subject, err)
	}

	if err := writeTransition(ctx, tx, o); err != nil {
		return err
	}
	return tx.Commit()
}

func writeObject(ctx context.Context, tx *sql.Tx, o op) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO objects (repository, path, kind, type_name, name, change_date, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository, path) DO UPDATE SET
			kind = excluded.kind,
			type_name = excluded.type_name,
			name = excluded.name,
			change_date = excluded.change_date,
			seq = excluded.seq
	`, o.repository, o.subject, o.objKind, o.typeName, o.name, o.changeDate, o.seq)
	return err
}

func writeClass(ctx context.Context, tx *sql.Tx, o op) error {
	requires := o.requires
	if requires == nil {
		requires = []string{}
	}
	encoded, err := json.Marshal(requires)
	if err != nil {
		return fmt.Errorf("marshal requires: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO classes (repository, name, simple_name, base_kind, requires, source, change_date, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository, name) DO UPDATE SET
			simple_name = excluded.simple_name,
			base_kind = excluded.base_kind,
			requires = excluded.requires,
			source = excluded.source,
			change_date = excluded.change_date,
			seq = excluded.seq
	`, o.repository, o.subject, o.simpleName, o.objKind, string(encoded), o.source, o.changeDate, o.seq)
	return err
}

// writeTransition appends the journal entry. Replaying an already recorded
// seq is a no-op.
func writeTransition(ctx context.Context, tx *sql.Tx, o op) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transitions (seq, repository, op, subject, kind, change_date)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`, o.seq, o.repository, string(o.kind), o.subject, o.objKind, o.changeDate)
	if err != nil {
		return fmt.Errorf("write transition %d: %w", o.seq, err)
	}
	return nil
}
