package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// S3API is the subset of the S3 client used by S3Exporter.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Exporter writes one CSV object per appointment plus a daily roll-up.
type S3Exporter struct {
	client S3API
	bucket string
	now    func() time.Time
	logger *logging.Logger
}

func NewS3Exporter(client S3API, bucket string, logger *logging.Logger) *S3Exporter {
	if client == nil {
		panic("export: s3 client cannot be nil")
	}
	if bucket == "" {
		panic("export: bucket cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &S3Exporter{client: client, bucket: bucket, now: time.Now, logger: logger}
}

func (e *S3Exporter) Export(ctx context.Context, row Row) (string, error) {
	data, err := encode(true, row.Values())
	if err != nil {
		return "", err
	}
	now := e.now().UTC()
	key := fmt.Sprintf("appointments/%d/%02d/%02d/%s", now.Year(), now.Month(), now.Day(), fileName(row, now))

	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("export: s3 put %s: %w", key, err)
	}
	e.logger.Info("appointment exported to S3", "appointment_id", row.Booking.AppointmentID, "s3_key", key)

	if err := e.appendDaily(ctx, row); err != nil {
		// The per-appointment object is already written.
		e.logger.Warn("failed to append daily export", "error", err, "appointment_id", row.Booking.AppointmentID)
	}
	return "s3://" + e.bucket + "/" + key, nil
}

// appendDaily adds the row to the roll-up for the appointment date.
// Uses read-modify-write since S3 doesn't support append.
func (e *S3Exporter) appendDaily(ctx context.Context, row Row) error {
	key := fmt.Sprintf("appointments/daily/%s.csv", row.Booking.Start.Format("2006-01-02"))

	var existing []byte
	out, err := e.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(e.bucket), Key: aws.String(key)})
	switch {
	case err == nil:
		defer out.Body.Close()
		existing, err = io.ReadAll(out.Body)
		if err != nil {
			return fmt.Errorf("export: read daily %s: %w", key, err)
		}
	case isNotFound(err):
	default:
		return fmt.Errorf("export: get daily %s: %w", key, err)
	}

	line, err := encode(len(existing) == 0, row.Values())
	if err != nil {
		return err
	}
	body := append(existing, line...)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("export: put daily %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var noKey *s3types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *s3types.NotFound
	return errors.As(err, &notFound)
}
