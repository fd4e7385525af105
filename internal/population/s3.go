package population

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/vaoffenders/offender-census/internal/census"
)

// ObjectGetter is the part of the S3 client S3Object needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Object reads the table from a CSV object in S3.
type S3Object struct {
	Client ObjectGetter
	Bucket string
	Key    string
}

// Load downloads and parses the object.
func (o S3Object) Load(ctx context.Context) ([]census.Subject, error) {
	out, err := o.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.Bucket),
		Key:    aws.String(o.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("getting s3://%s/%s: %w", o.Bucket, o.Key, err)
	}
	defer out.Body.Close()

	subjects, err := ReadCSV(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3://%s/%s: %w", o.Bucket, o.Key, err)
	}
	return subjects, nil
}
