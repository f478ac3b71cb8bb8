// Package archive exports finalized run traces to S3-compatible storage.
// The archive is an observability sink: every write is best-effort and a
// failure never touches the run itself.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrNotFound = errors.New("archive: trace not found")

type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether the config names a reachable archive target.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.Bucket) != ""
}

type Archive struct {
	client *minio.Client
	bucket string
	region string

	initOnce sync.Once
	initErr  error
}

func New(cfg Config) (*Archive, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("archive endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("archive access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init archive client: %w", err)
	}
	return &Archive{client: client, bucket: bucket, region: region}, nil
}

func (a *Archive) ensureBucket(ctx context.Context) error {
	if a == nil || a.client == nil {
		return fmt.Errorf("archive is nil")
	}
	a.initOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.initErr = err
			return
		}
		if exists {
			return
		}
		a.initErr = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region})
	})
	return a.initErr
}

// PutTrace stores one finalized trace document under runs/{run_id}/trace.json.
func (a *Archive) PutTrace(ctx context.Context, runID string, trace []byte) error {
	if a == nil {
		return fmt.Errorf("archive is nil")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("run_id is required")
	}
	if err := a.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	if trace == nil {
		trace = []byte{}
	}
	_, err := a.client.PutObject(ctx, a.bucket, traceKey(runID), bytes.NewReader(trace), int64(len(trace)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (a *Archive) GetTrace(ctx context.Context, runID string) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("archive is nil")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	if err := a.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	obj, err := a.client.GetObject(ctx, a.bucket, traceKey(runID), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// TraceURL returns a presigned link for sharing one trace.
func (a *Archive) TraceURL(ctx context.Context, runID string) (string, error) {
	if a == nil || a.client == nil {
		return "", fmt.Errorf("archive is nil")
	}
	u, err := a.client.PresignedGetObject(ctx, a.bucket, traceKey(strings.TrimSpace(runID)), time.Hour, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func traceKey(runID string) string {
	return "runs/" + runID + "/trace.json"
}
