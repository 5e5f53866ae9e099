package ddl

import (
	"fmt"

	"quilt-athena/internal/domain"
)

// DropTableTemplate is the built-in drop statement for table objects. Athena
// DDL (Hive dialect) quotes table names with backticks.
const DropTableTemplate = "DROP TABLE IF EXISTS `{prefix}_{bucket}`"

// ObjectName returns the catalog name an object resolves to: <prefix>_<bucket>.
func ObjectName(params domain.ProvisioningParameters) string {
	return params.Prefix + "_" + params.BucketName
}

// DropStatement resolves the drop statement for a table object. When the
// object names its own drop template it is read through the resolver,
// otherwise DropTableTemplate is used. Views have no drop statement.
func DropStatement(r *Resolver, obj domain.CatalogObject, params domain.ProvisioningParameters) (string, error) {
	if !obj.IsTable() {
		return "", domain.ErrValidation("%s has no drop statement", obj.Ref())
	}
	if err := ValidateIdentifier(params.Prefix); err != nil {
		return "", fmt.Errorf("invalid prefix for %s: %w", obj.Ref(), err)
	}
	if obj.DropTemplate != "" {
		return r.ResolveFile(obj.DropTemplate, params)
	}
	return Resolve(DropTableTemplate, params)
}

// CreateStatement resolves the create statement for any object.
func CreateStatement(r *Resolver, obj domain.CatalogObject, params domain.ProvisioningParameters) (string, error) {
	if err := ValidateIdentifier(params.Prefix); err != nil {
		return "", fmt.Errorf("invalid prefix for %s: %w", obj.Ref(), err)
	}
	return r.ResolveFile(obj.TemplatePath, params)
}
