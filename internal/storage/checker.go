package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"quilt-athena/internal/domain"
)

// Compile-time check: S3Checker implements domain.OutputChecker.
var _ domain.OutputChecker = (*S3Checker)(nil)

// HeadBucketAPI is the subset of the S3 client the checker uses.
type HeadBucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Checker verifies that the output bucket exists and is reachable with the
// configured credentials before any DDL is submitted.
type S3Checker struct {
	api    HeadBucketAPI
	logger *slog.Logger
}

// NewS3Checker creates a checker around an S3 client.
func NewS3Checker(api HeadBucketAPI, logger *slog.Logger) *S3Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Checker{api: api, logger: logger}
}

// NewS3CheckerFromConfig creates a checker from a loaded AWS config.
func NewS3CheckerFromConfig(cfg aws.Config, logger *slog.Logger) *S3Checker {
	return NewS3Checker(s3.NewFromConfig(cfg), logger)
}

// Verify issues HeadBucket for the location's bucket.
func (c *S3Checker) Verify(ctx context.Context, loc domain.OutputLocation) error {
	bucket, _, err := ParseS3Path(loc.String())
	if err != nil {
		return domain.ErrValidation("invalid output location: %v", err)
	}

	_, err = c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		c.logger.Debug("output location verified", "output_location", loc.String())
		return nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return domain.ErrNotFound("output bucket %q does not exist", bucket)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "Forbidden" || apiErr.ErrorCode() == "AccessDenied") {
		return fmt.Errorf("output bucket %q is not accessible: %s", bucket, apiErr.ErrorCode())
	}
	return fmt.Errorf("check output bucket %q: %w", bucket, err)
}
