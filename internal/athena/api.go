// Package athena adapts the AWS Athena API to the domain.QueryService port.
package athena

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/athena"
)

// API is the subset of the Athena client used by Client. It abstracts the
// AWS SDK v2 client so tests can supply a mock.
type API interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
}
