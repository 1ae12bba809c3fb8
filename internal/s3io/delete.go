package s3io

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DeleteKey removes an object from the bucket. S3 deletes are silently
// idempotent, but callers cleaning up after a failed upload need to know
// whether the object was ever there, so check first and report a missing
// key as *ErrNoSuchObject.
func (cl *client) DeleteKey(key string) error {

	exists, err := cl.Exists(key)
	if err != nil {
		return err
	}
	if !exists {
		return &ErrNoSuchObject{
			Key: key,
		}
	}

	_, err = cl.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: cl.bucket,
		Key:    aws.String(key),
	})

	return err
}
