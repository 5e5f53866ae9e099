package ddl

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierRe allows alphanumeric + underscores, starting with a letter or underscore.
var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// bucketNameRe follows the S3 bucket naming rules: 3-63 characters of
// lowercase letters, digits, dots and hyphens, beginning and ending with a
// letter or digit.
var bucketNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// maxIdentifierLen is the maximum length allowed for a SQL identifier.
const maxIdentifierLen = 128

// ValidateIdentifier checks that name is a safe SQL identifier:
//   - Non-empty
//   - At most 128 characters
//   - Matches [a-zA-Z_][a-zA-Z0-9_]*
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("name must be at most %d characters", maxIdentifierLen)
	}
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("name must match [a-zA-Z_][a-zA-Z0-9_]*")
	}
	return nil
}

// ValidateBucketName checks that name is a usable S3 bucket name. Bucket
// names are substituted into statements verbatim, so anything that could
// break out of a quoted identifier or string literal is rejected here.
func ValidateBucketName(name string) error {
	if name == "" {
		return fmt.Errorf("bucket name is required")
	}
	if !bucketNameRe.MatchString(name) {
		return fmt.Errorf("bucket name %q must be 3-63 characters of [a-z0-9.-]", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("bucket name %q must not contain consecutive dots", name)
	}
	return nil
}
