// Package catalog holds the data-driven definitions of the catalog objects a
// run provisions, and the ordering rules between them.
package catalog

import (
	"quilt-athena/internal/ddl"
	"quilt-athena/internal/domain"
)

// Default table prefixes for the two Quilt object families.
const (
	ManifestsPrefix     = "quilt_manifests"
	NamedPackagesPrefix = "quilt_named_packages"
)

// Defaults returns the built-in catalog: a manifests table and a named
// packages table, each with a view layered on top.
func Defaults() []domain.CatalogObject {
	manifests := domain.CatalogObject{
		Name:         "manifests",
		Kind:         domain.ObjectKindTable,
		Prefix:       ManifestsPrefix,
		TemplatePath: "manifests.ddl",
	}
	namedPackages := domain.CatalogObject{
		Name:         "named_packages",
		Kind:         domain.ObjectKindTable,
		Prefix:       NamedPackagesPrefix,
		TemplatePath: "named_packages.ddl",
	}
	return []domain.CatalogObject{
		manifests,
		viewOf(manifests, "manifests_view.ddl"),
		namedPackages,
		viewOf(namedPackages, "named_packages_view.ddl"),
	}
}

func viewOf(table domain.CatalogObject, template string) domain.CatalogObject {
	ref := table.Ref()
	return domain.CatalogObject{
		Name:         table.Name + "_view",
		Kind:         domain.ObjectKindView,
		Prefix:       table.Prefix,
		TemplatePath: template,
		DependsOn:    &ref,
	}
}

// Validate checks a catalog definition for internal consistency: unique
// identities, known kinds, present templates, valid prefixes, and
// dependencies that name another object in the set.
func Validate(objects []domain.CatalogObject) error {
	if len(objects) == 0 {
		return domain.ErrValidation("catalog defines no objects")
	}

	seen := make(map[domain.ObjectRef]struct{}, len(objects))
	for _, o := range objects {
		if o.Name == "" {
			return domain.ErrValidation("catalog object name is required")
		}
		if o.Kind != domain.ObjectKindTable && o.Kind != domain.ObjectKindView {
			return domain.ErrValidation("%s: unknown kind %q", o.Name, o.Kind)
		}
		if _, dup := seen[o.Ref()]; dup {
			return domain.ErrValidation("duplicate catalog object: %s", o.Ref())
		}
		seen[o.Ref()] = struct{}{}

		if o.TemplatePath == "" {
			return domain.ErrValidation("%s: template is required", o.Ref())
		}
		if o.DropTemplate != "" && !o.IsTable() {
			return domain.ErrValidation("%s: views are never dropped, drop_template is not allowed", o.Ref())
		}
		if o.Prefix != "" {
			if err := ddl.ValidateIdentifier(o.Prefix); err != nil {
				return domain.ErrValidation("%s: invalid prefix: %v", o.Ref(), err)
			}
		}
	}

	for _, o := range objects {
		if o.DependsOn == nil {
			continue
		}
		if *o.DependsOn == o.Ref() {
			return domain.ErrValidation("self dependency: %s", o.Ref())
		}
		if _, ok := seen[*o.DependsOn]; !ok {
			return domain.ErrValidation("%s: unknown dependency %s", o.Ref(), *o.DependsOn)
		}
	}
	return nil
}
