package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vitalvault/vitalvault/internal/config"
	"github.com/vitalvault/vitalvault/internal/events"
	"github.com/vitalvault/vitalvault/internal/models"
)

// S3Vault writes day files to an S3 bucket for headless deployments
// where the vault folder is synced from object storage.
type S3Vault struct {
	client *s3.Client
	bucket string
	prefix string
	logger *events.Logger

	mu      sync.Mutex
	started bool
}

// NewS3 creates an S3-backed vault. Credentials and region come from
// the default AWS config chain.
func NewS3(cfg *config.VaultConfig, logger *events.Logger) (*S3Vault, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	prefix := strings.Trim(cfg.S3Prefix, "/")
	if cfg.Subfolder != "" {
		prefix = path.Join(prefix, cfg.Subfolder)
	}

	return &S3Vault{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
		prefix: prefix,
		logger: logger.WithField("component", "s3_vault"),
	}, nil
}

// HasAccess reports whether a bucket is configured.
func (s *S3Vault) HasAccess() bool {
	return s.bucket != ""
}

// Refresh checks the bucket is reachable.
func (s *S3Vault) Refresh() error {
	if s.bucket == "" {
		return models.ErrNoVaultSelected
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 head bucket %s: %v: %w", s.bucket, err, models.ErrVaultAccess)
	}

	return nil
}

// Start opens the access bracket.
func (s *S3Vault) Start() error {
	if err := s.Refresh(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.logger.Warn("Vault access started twice without stop")
	}
	s.started = true

	s.logger.WithFields(map[string]interface{}{
		"bucket": s.bucket,
		"prefix": s.prefix,
	}).Debug("Vault access started")
	return nil
}

// Stop closes the access bracket.
func (s *S3Vault) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.logger.Warn("Vault access stopped without start")
		return
	}
	s.started = false

	s.logger.Debug("Vault access stopped")
}

// Write uploads data to the bucket.
func (s *S3Vault) Write(filePath string, data []byte) error {
	key := s.buildKey(filePath)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
		Metadata: map[string]string{
			"path": filePath,
		},
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"key":  key,
		"size": len(data),
	}).Debug("Wrote file to S3")

	return nil
}

// Read retrieves object contents.
func (s *S3Vault) Read(filePath string) ([]byte, error) {
	key := s.buildKey(filePath)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer result.Body.Close()

	return io.ReadAll(result.Body)
}

// Exists checks if an object exists.
func (s *S3Vault) Exists(filePath string) (bool, error) {
	key := s.buildKey(filePath)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// Check if it's a 404
		if strings.Contains(err.Error(), "NotFound") {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// EnsureDir is a no-op; S3 has no directories.
func (s *S3Vault) EnsureDir(dirPath string) error {
	return nil
}

func (s *S3Vault) buildKey(filePath string) string {
	// Clean and normalize the path
	cleanPath := path.Clean(strings.ReplaceAll(filePath, "\\", "/"))
	cleanPath = strings.TrimPrefix(cleanPath, "/")

	if s.prefix != "" {
		return path.Join(s.prefix, cleanPath)
	}
	return cleanPath
}
