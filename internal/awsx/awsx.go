// Package awsx builds AWS SDK clients from the application config. Static
// credentials and a base endpoint override are optional so the same code
// runs against AWS, LocalStack or MinIO.
package awsx

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var loadDefaultAWSConfig = config.LoadDefaultConfig

// Settings is the AWS part of a component config.
type Settings struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// BaseEndpoint overrides the service endpoint for every client.
	BaseEndpoint string
}

// LoadConfig resolves an aws.Config. Without static keys the default
// credential chain (env, shared profile, instance role) is used.
func LoadConfig(ctx context.Context, s Settings) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if s.Region != "" {
		opts = append(opts, config.WithRegion(s.Region))
	}
	if s.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, ""),
		))
	}
	return loadDefaultAWSConfig(ctx, opts...)
}

func setEndpoint(dst **string, s Settings) {
	if s.BaseEndpoint != "" {
		*dst = aws.String(s.BaseEndpoint)
	}
}

func NewDynamoDB(cfg aws.Config, s Settings) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		setEndpoint(&o.BaseEndpoint, s)
	})
}

func NewKMS(cfg aws.Config, s Settings) *kms.Client {
	return kms.NewFromConfig(cfg, func(o *kms.Options) {
		setEndpoint(&o.BaseEndpoint, s)
	})
}

// NewS3 uses path-style addressing whenever an endpoint is overridden;
// MinIO does not serve virtual-hosted buckets by default.
func NewS3(cfg aws.Config, s Settings) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		setEndpoint(&o.BaseEndpoint, s)
		o.UsePathStyle = s.BaseEndpoint != ""
	})
}

func NewAgentCore(cfg aws.Config, s Settings) *bedrockagentcore.Client {
	return bedrockagentcore.NewFromConfig(cfg, func(o *bedrockagentcore.Options) {
		setEndpoint(&o.BaseEndpoint, s)
	})
}
