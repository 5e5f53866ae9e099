// Package storage derives and checks the S3 location the query service
// writes statement results to.
package storage

import (
	"fmt"
	"net/url"
	"strings"

	"quilt-athena/internal/domain"
)

// DefaultSubpath is where results land inside the output bucket.
const DefaultSubpath = ".quilt/athena"

// OutputLocationFor returns s3://<bucket>/<subpath>/. The trailing slash makes
// Athena treat the location as a prefix.
func OutputLocationFor(bucket, subpath string) (domain.OutputLocation, error) {
	if bucket == "" {
		return "", domain.ErrValidation("output bucket is required")
	}
	subpath = strings.Trim(subpath, "/")
	if subpath == "" {
		return domain.OutputLocation(fmt.Sprintf("s3://%s/", bucket)), nil
	}
	return domain.OutputLocation(fmt.Sprintf("s3://%s/%s/", bucket, subpath)), nil
}

// ParseS3Path extracts bucket and key from an "s3://bucket/path/to/file" URI.
// The key may be empty for bucket-level URIs.
func ParseS3Path(s3Path string) (bucket, key string, err error) {
	u, err := url.Parse(s3Path)
	if err != nil {
		return "", "", fmt.Errorf("parse S3 path %q: %w", s3Path, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("expected s3:// scheme, got %q in %q", u.Scheme, s3Path)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("empty bucket in S3 path %q", s3Path)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}
