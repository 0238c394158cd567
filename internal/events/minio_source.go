package events

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"

	"procurement-workflow/internal/domain"
	"procurement-workflow/internal/sanitize"
)

const objectCreatedEvent = "s3:ObjectCreated:*"

// UploadEvent is a stage document dropped into the inbox bucket under
// {processId}/{stage}/{fileName}.
type UploadEvent struct {
	ProcessID string
	Stage     domain.Stage
	FileName  string
	ObjectKey string
	EventName string
}

type UploadEventSource interface {
	Run(ctx context.Context, handler func(context.Context, UploadEvent) error) error
}

type MinioUploadEventSource struct {
	client *minio.Client
	bucket string
	prefix string
	suffix string
	skip   func(objectKey string, err error)
}

func NewMinioUploadEventSource(client *minio.Client, bucket string, prefix string, suffix string) *MinioUploadEventSource {
	return &MinioUploadEventSource{
		client: client,
		bucket: bucket,
		prefix: prefix,
		suffix: suffix,
	}
}

// OnSkip registers a callback for objects whose keys do not name a process
// stage. They are otherwise dropped silently.
func (s *MinioUploadEventSource) OnSkip(fn func(objectKey string, err error)) {
	s.skip = fn
}

func (s *MinioUploadEventSource) Bucket() string {
	return s.bucket
}

func (s *MinioUploadEventSource) Run(ctx context.Context, handler func(context.Context, UploadEvent) error) error {
	notificationCh := s.client.ListenBucketNotification(ctx, s.bucket, s.prefix, s.suffix, []string{objectCreatedEvent})
	for {
		select {
		case <-ctx.Done():
			return nil
		case info, ok := <-notificationCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream closed")
			}
			if info.Err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream error: %w", info.Err)
			}
			for _, record := range info.Records {
				event, err := eventFromKey(record.S3.Object.Key)
				if err != nil {
					if s.skip != nil {
						s.skip(record.S3.Object.Key, err)
					}
					continue
				}
				event.EventName = record.EventName
				if err := handler(ctx, event); err != nil {
					return err
				}
			}
		}
	}
}

func eventFromKey(encoded string) (UploadEvent, error) {
	objectKey, err := decodeObjectKey(encoded)
	if err != nil {
		return UploadEvent{}, err
	}
	processID, stage, fileName, err := parseObjectKey(objectKey)
	if err != nil {
		return UploadEvent{}, err
	}
	return UploadEvent{
		ProcessID: processID,
		Stage:     stage,
		FileName:  fileName,
		ObjectKey: objectKey,
	}, nil
}

func decodeObjectKey(encoded string) (string, error) {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", err
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", fmt.Errorf("object key is empty")
	}
	return decoded, nil
}

func parseObjectKey(objectKey string) (string, domain.Stage, string, error) {
	cleaned := strings.Trim(strings.ReplaceAll(objectKey, "\\", "/"), "/")
	parts := strings.SplitN(cleaned, "/", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("object key %q does not match process_id/stage/filename", objectKey)
	}
	processID := sanitize.String(parts[0])
	stage := domain.Stage(strings.ToLower(sanitize.String(parts[1])))
	fileName := sanitize.String(parts[2])
	if processID == "" || fileName == "" {
		return "", "", "", fmt.Errorf("object key %q missing process id or filename", objectKey)
	}
	if !stage.IsSubmittable() {
		return "", "", "", fmt.Errorf("object key %q names stage %q, which does not accept uploads", objectKey, stage)
	}
	return processID, stage, fileName, nil
}
