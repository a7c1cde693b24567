package external

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// ErrMissingCredentials is returned when static credentials are incomplete.
var ErrMissingCredentials = fmt.Errorf("aws access key id and secret access key are required")

// credentialsProvider returns the provider for an invocation: static keys
// from the input, or the AWS default credential chain.
func credentialsProvider(ctx context.Context, in *InvokeInput) (aws.CredentialsProvider, error) {
	if in.UseDefaultChain {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(in.region()))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return cfg.Credentials, nil
	}

	c := in.Credentials
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return nil, ErrMissingCredentials
	}
	return aws.NewCredentialsCache(
		credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken),
	), nil
}

// clientKey identifies a cached client. Secrets are hashed, never stored raw.
func clientKey(in *InvokeInput) string {
	if in.UseDefaultChain {
		return in.region() + "|default"
	}
	sum := sha256.Sum256([]byte(in.Credentials.SecretAccessKey + "\x00" + in.Credentials.SessionToken))
	return in.region() + "|" + in.Credentials.AccessKeyID + "|" + hex.EncodeToString(sum[:8])
}
