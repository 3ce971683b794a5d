package cloud

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/cloudwright/cloudwright/internal/catalog"
	"github.com/cloudwright/cloudwright/internal/engine"
	"github.com/cloudwright/cloudwright/internal/logging"
)

// S3API is the slice of the S3 client the service needs.
type S3API interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketEncryption(ctx context.Context, params *s3.PutBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.PutBucketEncryptionOutput, error)
	PutBucketVersioning(ctx context.Context, params *s3.PutBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error)
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// S3 executes bucket operations against the provider.
type S3 struct {
	api    S3API
	region string
	log    *logrus.Entry
}

// NewS3 builds the service. region is the default bucket region when
// a request names none.
func NewS3(api S3API, region string, logger *logrus.Logger) *S3 {
	return &S3{
		api:    api,
		region: region,
		log:    logging.ForComponent(logger, "s3"),
	}
}

// Create makes a bucket and applies the requested encryption and
// versioning settings.
func (s *S3) Create(ctx context.Context, params catalog.ParameterSet) (*engine.Outcome, error) {
	bucket, _ := params.String("BucketName")

	region := s.region
	if v, ok := params.String("Region"); ok && v != "" {
		region = v
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	// us-east-1 is the API default and rejects an explicit constraint.
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}
	if acl, ok := params.String("ACL"); ok && acl != "" {
		input.ACL = s3types.BucketCannedACL(acl)
	}

	if _, err := s.api.CreateBucket(ctx, input); err != nil {
		return nil, translateError(err, true)
	}

	meta := map[string]string{"region": region}
	if v, ok := params.Bool("BucketEncryption"); ok && v {
		if err := s.enableEncryption(ctx, bucket); err != nil {
			return nil, err
		}
		meta["encryption"] = "AES256"
	}
	if v, ok := params.Bool("Versioning"); ok && v {
		if err := s.enableVersioning(ctx, bucket); err != nil {
			return nil, err
		}
		meta["versioning"] = "enabled"
	}

	s.log.WithFields(logrus.Fields{"bucket": bucket, "region": region}).Info("created bucket")
	return &engine.Outcome{ResourceIDs: []string{bucket}, Metadata: meta}, nil
}

// List names all buckets in the account.
func (s *S3) List(ctx context.Context) (*engine.Outcome, error) {
	out, err := s.api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, translateError(err, false)
	}

	ids := make([]string, 0, len(out.Buckets))
	meta := map[string]string{}
	for _, b := range out.Buckets {
		name := aws.ToString(b.Name)
		ids = append(ids, name)
		if b.CreationDate != nil {
			meta[name] = b.CreationDate.UTC().Format(time.RFC3339)
		}
	}
	meta["count"] = strconv.Itoa(len(ids))

	return &engine.Outcome{ResourceIDs: ids, Metadata: meta}, nil
}

// Delete removes a bucket. With Force the bucket is emptied first,
// without it a non-empty bucket fails with the provider's
// BucketNotEmpty error.
func (s *S3) Delete(ctx context.Context, params catalog.ParameterSet) (*engine.Outcome, error) {
	bucket, _ := params.String("BucketName")

	meta := map[string]string{}
	if force, ok := params.Bool("Force"); ok && force {
		removed, err := s.emptyBucket(ctx, bucket)
		if err != nil {
			return nil, err
		}
		meta["deleted_objects"] = strconv.Itoa(removed)
	}

	if _, err := s.api.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return nil, translateError(err, true)
	}

	s.log.WithField("bucket", bucket).Info("deleted bucket")
	return &engine.Outcome{ResourceIDs: []string{bucket}, Metadata: meta}, nil
}

func (s *S3) enableEncryption(ctx context.Context, bucket string) error {
	_, err := s.api.PutBucketEncryption(ctx, &s3.PutBucketEncryptionInput{
		Bucket: aws.String(bucket),
		ServerSideEncryptionConfiguration: &s3types.ServerSideEncryptionConfiguration{
			Rules: []s3types.ServerSideEncryptionRule{{
				ApplyServerSideEncryptionByDefault: &s3types.ServerSideEncryptionByDefault{
					SSEAlgorithm: s3types.ServerSideEncryptionAes256,
				},
			}},
		},
	})
	if err != nil {
		return translateError(err, true)
	}
	return nil
}

func (s *S3) enableVersioning(ctx context.Context, bucket string) error {
	_, err := s.api.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(bucket),
		VersioningConfiguration: &s3types.VersioningConfiguration{
			Status: s3types.BucketVersioningStatusEnabled,
		},
	})
	if err != nil {
		return translateError(err, true)
	}
	return nil
}

// emptyBucket deletes every object, page by page, and reports how
// many were removed.
func (s *S3) emptyBucket(ctx context.Context, bucket string) (int, error) {
	removed := 0
	var token *string
	for {
		page, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return removed, translateError(err, false)
		}
		if len(page.Contents) > 0 {
			objects := make([]s3types.ObjectIdentifier, 0, len(page.Contents))
			for _, obj := range page.Contents {
				objects = append(objects, s3types.ObjectIdentifier{Key: obj.Key})
			}
			if _, err := s.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
			}); err != nil {
				return removed, translateError(err, true)
			}
			removed += len(objects)
		}
		if !aws.ToBool(page.IsTruncated) {
			return removed, nil
		}
		token = page.NextContinuationToken
	}
}
