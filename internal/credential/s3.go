// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// s3API is the narrow slice of the S3 client the verifier uses.
type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3ClientFactory constructs an S3 client for a verification probe.
type S3ClientFactory func(ctx context.Context, endpoint, accessKey, accessSecret string) (s3API, error)

func defaultS3ClientFactory(_ context.Context, endpoint, accessKey, accessSecret string) (s3API, error) {
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, accessSecret, ""),
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return client, nil
}

// verifyProbeKey is an object key expected not to exist.  A NotFound answer
// proves the request passed authorization, which is all the probe needs.
const verifyProbeKey = "tapis-systems-credential-probe-5f2c9b"

// verifyS3 issues a harmless HeadObject for a key expected not to exist.  A
// "no such key" answer proves the credentials were accepted; a 403-equivalent
// proves they were not; anything else is a connection failure.  It never
// fails for a rejected credential.
func (b *Broker) verifyS3(ctx context.Context, endpoint, bucket, accessKey, accessSecret string) (bool, string) {
	client, err := b.s3Factory(ctx, endpoint, accessKey, accessSecret)
	if err != nil {
		return false, fmt.Sprintf("unable to construct S3 client: %v", err)
	}
	_, err = client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(verifyProbeKey),
	})
	switch {
	case err == nil:
		// The probe object unexpectedly exists.  The request still passed
		// authorization, so the credentials are good.
		return true, "credentials accepted"
	case isS3NotFound(err):
		return true, "credentials accepted"
	case isS3AuthError(err):
		return false, fmt.Sprintf("bucket %s rejected the credentials: %v", bucket, err)
	default:
		return false, fmt.Sprintf("connection to bucket %s failed: %v", bucket, err)
	}
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404
}

func isS3AuthError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "Forbidden":
			return true
		}
		if strings.Contains(apiErr.ErrorMessage(), "403") {
			return true
		}
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == 403
}
