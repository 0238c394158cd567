package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
}

// NewMinioStore binds client to bucket, creating the bucket when missing.
func NewMinioStore(ctx context.Context, client *minio.Client, bucket string) (*MinioStore, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &MinioStore{client: client, bucket: bucket}, nil
}

func (m *MinioStore) Bucket() string {
	return m.bucket
}

// SubmissionKey is the object key of an archived stage submission.
func SubmissionKey(processID, stage, submissionID, fileName string) string {
	return path.Join(processID, stage, submissionID+"-"+fileName)
}

// PutSubmission archives an uploaded stage document and returns its key.
func (m *MinioStore) PutSubmission(ctx context.Context, processID, stage, submissionID, fileName, contentType string, content []byte) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	objectKey := SubmissionKey(processID, stage, submissionID, fileName)
	_, err := m.client.PutObject(ctx, m.bucket, objectKey, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return objectKey, nil
}

// GetObject reads an object of at most maxBytes; larger objects fail with
// ErrObjectTooLarge. A non-positive maxBytes reads without a limit.
func (m *MinioStore) GetObject(ctx context.Context, objectKey string, maxBytes int64) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := readLimited(obj, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", objectKey, err)
	}
	return data, nil
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	data := new(bytes.Buffer)
	if _, err := data.ReadFrom(r); err != nil {
		return nil, err
	}
	if maxBytes > 0 && int64(data.Len()) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrObjectTooLarge, maxBytes)
	}
	return data.Bytes(), nil
}
