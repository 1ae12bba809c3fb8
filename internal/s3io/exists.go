package s3io

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Exists reports whether the key is present in the bucket. The delete path
// uses it to tell a compensating delete that found nothing apart from one
// that removed a half-uploaded chunk.
func (cl *client) Exists(key string) (bool, error) {
	_, err := cl.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: cl.bucket,
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if notFound(err) {
		return false, nil
	}
	return false, err
}
