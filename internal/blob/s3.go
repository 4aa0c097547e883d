package blob

import (
	aws3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/casdoor/oss/s3"
	"github.com/pkg/errors"
)

// NewS3 creates an S3 or MinIO backed store. Objects are private; downloads
// go through the API.
func NewS3(c *Config) (Storage, error) {
	if c.Bucket == "" {
		return nil, errors.New("bucket is required for s3 provider")
	}
	if c.ID == "" || c.Secret == "" {
		return nil, errors.New("access ID and secret are required for s3 provider")
	}
	region := c.Region
	if region == "" {
		region = "us-east-1"
	}
	return s3.New(&s3.Config{
		AccessID:         c.ID,
		AccessKey:        c.Secret,
		Region:           region,
		Bucket:           c.Bucket,
		Endpoint:         c.Endpoint,
		S3Endpoint:       c.Endpoint,
		ACL:              aws3.BucketCannedACLPrivate,
		S3ForcePathStyle: c.Endpoint != "",
	}), nil
}
