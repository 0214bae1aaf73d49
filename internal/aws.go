package internal

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/smithy-go"

	"github.com/chukul/capsulectl/internal/log"
)

type options struct {
	profile string
	region  string
	creds   aws.CredentialsProvider
}

// Option customizes how AWS config is loaded.
type Option func(*options)

// WithProfile selects a shared config profile. Ignored when static
// credentials are supplied.
func WithProfile(profile string) Option {
	return func(o *options) { o.profile = profile }
}

// WithRegion overrides the region resolved from env/profile.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithStaticCredentials pins the config to a single access key pair.
func WithStaticCredentials(accessKey, secretKey string) Option {
	return func(o *options) {
		o.creds = credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")
	}
}

// LoadAWSConfig loads an SDK config from the default chain (env, shared
// config, IMDS) with the given overrides applied.
func LoadAWSConfig(ctx context.Context, opts ...Option) (aws.Config, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var loadOpts []func(*config.LoadOptions) error
	if o.creds != nil {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(o.creds))
	} else if o.profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(o.profile))
	}
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}
	log.Debugf("loading aws config: profile=%q region=%q static=%t", o.profile, o.region, o.creds != nil)

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, err
	}
	return cfg, nil
}

// AWSConfig builds an SDK config authenticated as the session's principal.
func (s *Session) AWSConfig(ctx context.Context) (aws.Config, error) {
	return LoadAWSConfig(ctx,
		WithRegion(s.Region),
		WithStaticCredentials(s.AccessKey, s.SecretKey),
	)
}

// ErrorCode returns the service error code carried by err, or "" when err
// did not come from an AWS API.
func ErrorCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}

// ErrorMessage returns the provider's human readable message for err,
// falling back to err.Error().
func ErrorMessage(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) && ae.ErrorMessage() != "" {
		return ae.ErrorMessage()
	}
	return err.Error()
}
