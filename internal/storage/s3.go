package storage

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/sunilgawai/pitchreel/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3Store implements BlobStore using an S3-compatible backend. The provider
// has no chunk-session reassembly, so SignUpload issues a presigned PUT for a
// single-shot upload; the chunked pipeline is a media-provider feature. The
// admin review path (destroy, signed fetch, download) is fully served.
type s3Store struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
}

// NewS3Store creates a new S3 storage instance.
func NewS3Store(cfg config.S3Config) (BlobStore, error) {
	// Custom resolver for S3-compatible endpoints (like MinIO, DigitalOcean Spaces)
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				PartitionID:   "aws",
				URL:           cfg.Endpoint,
				SigningRegion: cfg.Region,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsSDKConfig, err := awsCfg.LoadDefaultConfig(context.TODO(),
		awsCfg.WithRegion(cfg.Region),
		awsCfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsCfg.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		log.Printf("ERROR: Failed to load AWS SDK config for S3: %v", err)
		return nil, err
	}

	// Path-style addressing is required by most S3-compatible services.
	s3Client := s3.NewFromConfig(awsSDKConfig, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	presignClient := s3.NewPresignClient(s3Client)

	log.Printf("INFO: S3 storage initialized for endpoint: %s, bucket: %s", cfg.Endpoint, cfg.BucketName)

	return &s3Store{
		client:        s3Client,
		presignClient: presignClient,
		bucketName:    cfg.BucketName,
	}, nil
}

// SignUpload issues a presigned PUT URL targeting folder/targetID as the
// object key. The remaining UploadParams fields stay empty; S3 authenticates
// through the URL itself.
func (s *s3Store) SignUpload(ctx context.Context, folder, targetID string) (*UploadParams, error) {
	objectKey := folder + "/" + targetID

	req, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(DefaultSignedURLExpiry))
	if err != nil {
		log.Printf("ERROR: Failed to generate presigned PUT URL for key '%s': %v", objectKey, err)
		return nil, err
	}

	return &UploadParams{
		UploadURL: req.URL,
		Timestamp: time.Now().Unix(),
		Folder:    folder,
		TargetID:  objectKey,
	}, nil
}

// Destroy removes the object from the bucket. A missing object reports
// "not found" so callers can treat it as already deleted.
func (s *s3Store) Destroy(ctx context.Context, remoteID string) (DestroyResult, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(remoteID),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return DestroyNotFound, nil
		}
		log.Printf("ERROR: Failed to check object '%s' in bucket '%s': %v", remoteID, s.bucketName, err)
		return "", err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(remoteID),
	})
	if err != nil {
		log.Printf("ERROR: Failed to delete object '%s' from bucket '%s': %v", remoteID, s.bucketName, err)
		return "", err
	}

	log.Printf("INFO: Deleted object '%s' from bucket '%s'", remoteID, s.bucketName)
	return DestroyOK, nil
}

// SignedDownloadURL creates a temporary URL for downloading the object.
func (s *s3Store) SignedDownloadURL(ctx context.Context, remoteID string, attachment bool) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(remoteID),
	}
	if attachment {
		input.ResponseContentDisposition = aws.String("attachment")
	}

	req, err := s.presignClient.PresignGetObject(ctx, input, s3.WithPresignExpires(DefaultSignedURLExpiry))
	if err != nil {
		log.Printf("ERROR: Failed to generate presigned GET URL for key '%s': %v", remoteID, err)
		return "", err
	}

	return req.URL, nil
}

// Download fetches the object bytes directly.
func (s *s3Store) Download(ctx context.Context, remoteID string) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(remoteID),
	})
	if err != nil {
		return nil, "", err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", err
	}

	contentType := aws.ToString(out.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}
