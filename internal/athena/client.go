package athena

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"quilt-athena/internal/domain"
)

// Compile-time check: Client implements domain.QueryService.
var _ domain.QueryService = (*Client)(nil)

// Client submits statements to Athena and polls their executions.
//
// All Client methods are safe for concurrent use; the SDK client and the
// rate limiter are both goroutine-safe.
type Client struct {
	api           API
	logger        *slog.Logger
	limiter       *rate.Limiter
	workGroup     string
	dataCatalog   string
	database      string
	maxResultRows int
	requestToken  func() string
}

// New creates a Client around an Athena API implementation.
func New(api API, opts ...Option) *Client {
	c := &Client{
		api:           api,
		logger:        slog.Default(),
		limiter:       rate.NewLimiter(rate.Limit(DefaultRequestsPerSec), DefaultBurst),
		maxResultRows: DefaultMaxResultRows,
		requestToken:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig creates a Client from a loaded AWS config.
func NewFromConfig(cfg aws.Config, endpoint string, opts ...Option) *Client {
	api := athena.NewFromConfig(cfg, func(o *athena.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return New(api, opts...)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// Submit starts the statement and returns its execution id. Each call uses a
// fresh client request token so SDK-level retries never start the statement
// twice.
func (c *Client) Submit(ctx context.Context, statement string, output domain.OutputLocation) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", &domain.SubmissionError{Statement: statement, Err: err}
	}

	in := &athena.StartQueryExecutionInput{
		QueryString:        aws.String(statement),
		ClientRequestToken: aws.String(c.requestToken()),
		ResultConfiguration: &types.ResultConfiguration{
			OutputLocation: aws.String(output.String()),
		},
	}
	if c.workGroup != "" {
		in.WorkGroup = aws.String(c.workGroup)
	}
	if c.database != "" || c.dataCatalog != "" {
		in.QueryExecutionContext = &types.QueryExecutionContext{}
		if c.database != "" {
			in.QueryExecutionContext.Database = aws.String(c.database)
		}
		if c.dataCatalog != "" {
			in.QueryExecutionContext.Catalog = aws.String(c.dataCatalog)
		}
	}

	out, err := c.api.StartQueryExecution(ctx, in)
	if err != nil {
		return "", &domain.SubmissionError{Statement: statement, Err: err}
	}
	id := aws.ToString(out.QueryExecutionId)
	if id == "" {
		return "", &domain.SubmissionError{Statement: statement, Err: errors.New("no execution id returned")}
	}
	c.logger.Debug("query submitted", "execution_id", id, "output_location", output.String())
	return id, nil
}

// GetStatus polls an execution.
func (c *Client) GetStatus(ctx context.Context, executionID string) (domain.ExecutionStatus, error) {
	if err := c.wait(ctx); err != nil {
		return domain.ExecutionStatus{}, err
	}

	out, err := c.api.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
		QueryExecutionId: aws.String(executionID),
	})
	if err != nil {
		if ctx.Err() != nil {
			return domain.ExecutionStatus{}, ctx.Err()
		}
		if isTransient(err) {
			return domain.ExecutionStatus{}, &domain.TransientError{ExecutionID: executionID, Err: err}
		}
		return domain.ExecutionStatus{}, &domain.FatalError{ExecutionID: executionID, Err: err}
	}
	if out.QueryExecution == nil || out.QueryExecution.Status == nil {
		return domain.ExecutionStatus{}, &domain.TransientError{
			ExecutionID: executionID,
			Err:         errors.New("execution status missing from response"),
		}
	}
	return toStatus(executionID, out.QueryExecution.Status)
}

func toStatus(executionID string, st *types.QueryExecutionStatus) (domain.ExecutionStatus, error) {
	status := domain.ExecutionStatus{ExecutionID: executionID}

	switch st.State {
	case types.QueryExecutionStateQueued:
		status.State = domain.ExecutionStateSubmitted
	case types.QueryExecutionStateRunning:
		status.State = domain.ExecutionStateRunning
	case types.QueryExecutionStateSucceeded:
		status.State = domain.ExecutionStateSucceeded
	case types.QueryExecutionStateFailed:
		status.State = domain.ExecutionStateFailed
	case types.QueryExecutionStateCancelled:
		status.State = domain.ExecutionStateCancelled
	default:
		return status, &domain.FatalError{
			ExecutionID: executionID,
			Err:         fmt.Errorf("unrecognized execution state %q", st.State),
		}
	}

	if st.AthenaError != nil && aws.ToString(st.AthenaError.ErrorMessage) != "" {
		status.Reason = aws.ToString(st.AthenaError.ErrorMessage)
	} else {
		status.Reason = aws.ToString(st.StateChangeReason)
	}
	return status, nil
}

// GetResults fetches the rows of a succeeded execution, up to the configured
// row cap.
func (c *Client) GetResults(ctx context.Context, executionID string) (*domain.QueryResult, error) {
	status, err := c.GetStatus(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if status.State != domain.ExecutionStateSucceeded {
		return nil, &domain.NotReadyError{ExecutionID: executionID, State: status.State}
	}

	result := &domain.QueryResult{ExecutionID: executionID}
	pages := athena.NewGetQueryResultsPaginator(c.api, &athena.GetQueryResultsInput{
		QueryExecutionId: aws.String(executionID),
	})

	first := true
	for pages.HasMorePages() {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("get results for execution %s: %w", executionID, err)
		}
		if page.ResultSet == nil {
			continue
		}
		if first && page.ResultSet.ResultSetMetadata != nil {
			for _, col := range page.ResultSet.ResultSetMetadata.ColumnInfo {
				result.Columns = append(result.Columns, aws.ToString(col.Name))
			}
		}
		for i, row := range page.ResultSet.Rows {
			values := rowValues(row)
			// SELECT results repeat the column names as the first row.
			if first && i == 0 && isHeader(values, result.Columns) {
				continue
			}
			if len(result.Rows) >= c.maxResultRows {
				result.Truncated = true
				return result, nil
			}
			result.Rows = append(result.Rows, values)
		}
		first = false
	}
	return result, nil
}

func rowValues(row types.Row) []string {
	values := make([]string, len(row.Data))
	for i, d := range row.Data {
		values[i] = aws.ToString(d.VarCharValue)
	}
	return values
}

func isHeader(values, columns []string) bool {
	if len(columns) == 0 || len(values) != len(columns) {
		return false
	}
	for i := range values {
		if values[i] != columns[i] {
			return false
		}
	}
	return true
}
