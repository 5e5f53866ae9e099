package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// AWSConfig loads the AWS SDK configuration: the default chain (env, shared
// config, instance role) with region and static credentials overridden when
// set.
func (c *Config) AWSConfig(ctx context.Context) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != nil {
		opts = append(opts, awsconfig.WithRegion(*c.Region))
	}
	if c.HasStaticCredentials() {
		token := ""
		if c.SessionToken != nil {
			token = *c.SessionToken
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(*c.KeyID, *c.Secret, token),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return cfg, nil
}
