package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/clinic-intake/internal/config"
)

// localServices are the clients redirected to AWS_ENDPOINT_OVERRIDE, e.g. LocalStack.
var localServices = map[string]bool{
	sqs.ServiceID:      true,
	dynamodb.ServiceID: true,
	s3.ServiceID:       true,
	sesv2.ServiceID:    true,
}

// LoadAWSConfig is shared by every binary so LocalStack and production wiring match.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := cfg.AWSEndpointOverride; endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				if !localServices[service] {
					return aws.Endpoint{}, &aws.EndpointNotFoundError{}
				}
				return aws.Endpoint{
					URL:               endpoint,
					PartitionID:       "aws",
					SigningRegion:     cfg.AWSRegion,
					HostnameImmutable: service == s3.ServiceID,
				}, nil
			},
		)
	}

	return awsCfg, nil
}
