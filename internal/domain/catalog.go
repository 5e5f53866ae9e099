package domain

import (
	"fmt"
	"strings"
)

// ObjectKind distinguishes tables from the views layered on them.
type ObjectKind string

// Catalog object kinds.
const (
	ObjectKindTable ObjectKind = "TABLE"
	ObjectKindView  ObjectKind = "VIEW"
)

// ParseObjectKind maps a case-insensitive kind name to an ObjectKind.
func ParseObjectKind(s string) (ObjectKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table":
		return ObjectKindTable, nil
	case "view":
		return ObjectKindView, nil
	default:
		return "", ErrValidation("unknown object kind %q", s)
	}
}

// ObjectRef identifies a catalog object. Identity is (name, kind).
type ObjectRef struct {
	Name string
	Kind ObjectKind
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("%s %s", r.Kind, r.Name)
}

// CatalogObject is a table or view definition registered with the query
// service. Objects are built from static configuration and never mutated.
type CatalogObject struct {
	Name         string
	Kind         ObjectKind
	Prefix       string     // overrides ProvisioningParameters.Prefix when set
	TemplatePath string     // create statement template
	DropTemplate string     // optional drop statement template path (tables only)
	DependsOn    *ObjectRef // nil for base objects
}

// Ref returns the identity of the object.
func (o CatalogObject) Ref() ObjectRef {
	return ObjectRef{Name: o.Name, Kind: o.Kind}
}

// IsTable reports whether the object is a table.
func (o CatalogObject) IsTable() bool { return o.Kind == ObjectKindTable }

// ProvisioningParameters are supplied once per run and shared read-only by
// every object.
type ProvisioningParameters struct {
	Prefix     string
	BucketName string
}

// ForObject returns the parameters used to resolve the object's templates.
func (p ProvisioningParameters) ForObject(o CatalogObject) ProvisioningParameters {
	if o.Prefix != "" {
		p.Prefix = o.Prefix
	}
	return p
}

// ObjectState is the provisioning state of a single catalog object.
type ObjectState string

// Object provisioning states.
const (
	ObjectStatePending      ObjectState = "PENDING"
	ObjectStateDropping     ObjectState = "DROPPING"
	ObjectStateDropComplete ObjectState = "DROP_COMPLETE"
	ObjectStateCreating     ObjectState = "CREATING"
	ObjectStateCreated      ObjectState = "CREATED"
	ObjectStateFailed       ObjectState = "FAILED"
)
