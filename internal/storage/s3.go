package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/vaoffenders/offender-census/internal/census"
	"github.com/vaoffenders/offender-census/internal/logger"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var contentTypes = map[string]string{
	FormatCSV:  "text/csv",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ObjectPutter is the part of the S3 client S3Sink needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads the run as a dated object under Prefix.
type S3Sink struct {
	Client ObjectPutter
	Bucket string
	Prefix string
	Format string // FormatXLSX (default) or FormatCSV
}

// Key returns the object key for a run that started at t.
func (s S3Sink) Key(t time.Time) string {
	return path.Join(s.Prefix, FileName(t, s.format()))
}

func (s S3Sink) format() string {
	if s.Format == "" {
		return FormatXLSX
	}
	return s.Format
}

// Write implements Sink.
func (s S3Sink) Write(ctx context.Context, run *census.RunResult) error {
	var encode func(io.Writer, *census.RunResult) error
	switch s.format() {
	case FormatXLSX:
		encode = WriteXLSX
	case FormatCSV:
		encode = WriteCSV
	default:
		return fmt.Errorf("unsupported s3 format %q", s.Format)
	}

	var buf bytes.Buffer
	if err := encode(&buf, run); err != nil {
		return err
	}

	key := s.Key(run.StartedAt)
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentTypes[s.format()]),
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", s.Bucket, key, err)
	}

	logger.Info("Results uploaded", logger.Fields{
		"bucket": s.Bucket,
		"key":    key,
		"bytes":  buf.Len(),
	})
	return nil
}
