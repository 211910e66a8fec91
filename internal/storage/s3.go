package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/yourorg/course-template-service/internal/config"
	"github.com/yourorg/course-template-service/internal/model"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// Object metadata keys used to keep the file reference next to the content
const (
	metaContext   = "Context-Id"
	metaComponent = "Component"
	metaArea      = "Filearea"
	metaItem      = "Item-Id"
	metaFilename  = "Filename"
)

// S3Storage implements the Storage interface for Amazon S3
type S3Storage struct {
	bucket     string
	s3Client   *s3.S3
	s3Uploader *s3manager.Uploader
}

// NewS3Storage creates a new S3Storage
func NewS3Storage(cfg *config.S3StorageConfig) (*S3Storage, error) {
	awsCfg := &aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	// Create AWS session
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	// Create S3 client
	s3Client := s3.New(sess)

	// Create a bucket if it doesn't exist
	_, err = s3Client.HeadBucket(&s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		_, err = s3Client.CreateBucket(&s3.CreateBucketInput{
			Bucket: aws.String(cfg.Bucket),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 bucket: %w", err)
		}
	}

	return &S3Storage{
		bucket:     cfg.Bucket,
		s3Client:   s3Client,
		s3Uploader: s3manager.NewUploader(sess),
	}, nil
}

// Store uploads a file to S3
func (s *S3Storage) Store(ctx context.Context, ref FileRef, r io.Reader, contentType string) (*StoredFile, error) {
	hash := ref.Hash()
	key := objectKey(hash)

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.s3Uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
		Metadata: map[string]*string{
			metaContext:   aws.String(strconv.Itoa(ref.ContextID)),
			metaComponent: aws.String(ref.Component),
			metaArea:      aws.String(ref.Area),
			metaItem:      aws.String(strconv.Itoa(ref.ItemID)),
			metaFilename:  aws.String(ref.Filename),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file to S3: %w", err)
	}

	// Read back size and modification time
	return s.Stat(ctx, hash)
}

// Open retrieves a file from S3
func (s *S3Storage) Open(ctx context.Context, hash string) (io.ReadCloser, *StoredFile, error) {
	if !validHash(hash) {
		return nil, nil, fmt.Errorf("file %q: %w", hash, model.ErrNotFound)
	}

	getResp, err := s.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(hash)),
	})
	if err != nil {
		return nil, nil, s.translateError(hash, err)
	}

	stored := storedFromObject(hash, getResp.Metadata, getResp.ContentType, getResp.ContentLength, getResp.LastModified)
	return getResp.Body, stored, nil
}

// OpenContent streams the object body; its metadata comes from a separate lookup
func (s *S3Storage) OpenContent(ctx context.Context, hash string) (io.ReadCloser, error) {
	body, _, err := s.Open(ctx, hash)
	return body, err
}

// Stat reads object metadata from S3
func (s *S3Storage) Stat(ctx context.Context, hash string) (*StoredFile, error) {
	if !validHash(hash) {
		return nil, fmt.Errorf("file %q: %w", hash, model.ErrNotFound)
	}

	head, err := s.s3Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(hash)),
	})
	if err != nil {
		return nil, s.translateError(hash, err)
	}

	return storedFromObject(hash, head.Metadata, head.ContentType, head.ContentLength, head.LastModified), nil
}

// Delete removes a file from S3
func (s *S3Storage) Delete(ctx context.Context, hash string) error {
	// S3 deletes are idempotent, so check existence first to report NotFound
	if _, err := s.Stat(ctx, hash); err != nil {
		return err
	}

	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(hash)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}

	return nil
}

func (s *S3Storage) translateError(hash string, err error) error {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return fmt.Errorf("file %s: %w", hash, model.ErrNotFound)
		}
	}
	return fmt.Errorf("failed to get object from S3: %w", err)
}

func storedFromObject(hash string, meta map[string]*string, contentType *string, size *int64, modTime *time.Time) *StoredFile {
	get := func(key string) string {
		if v, ok := meta[key]; ok && v != nil {
			return *v
		}
		return ""
	}

	contextID, _ := strconv.Atoi(get(metaContext))
	itemID, _ := strconv.Atoi(get(metaItem))

	return &StoredFile{
		Ref: FileRef{
			ContextID: contextID,
			Component: get(metaComponent),
			Area:      get(metaArea),
			ItemID:    itemID,
			Filename:  get(metaFilename),
		},
		Hash:        hash,
		Size:        aws.Int64Value(size),
		ContentType: aws.StringValue(contentType),
		ModTime:     aws.TimeValue(modTime),
	}
}
