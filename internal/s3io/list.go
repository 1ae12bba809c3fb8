package s3io

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ListMatching returns every key under the prefix in listing order.
func (cl *client) ListMatching(prefix string) ([]string, error) {

	loi := s3.ListObjectsV2Input{
		Bucket: cl.bucket,
		Prefix: aws.String(prefix),
	}

	var keys []string
	for {
		resp, err := cl.client.ListObjectsV2(context.Background(), &loi)
		if err != nil {
			return nil, err
		}

		for _, object := range resp.Contents {
			keys = append(keys, aws.ToString(object.Key))
		}

		if resp.IsTruncated != nil && *resp.IsTruncated {
			loi.ContinuationToken = resp.NextContinuationToken
			continue
		}
		break
	}

	return keys, nil
}

// Metadata fetches the user metadata attached to an object at upload time.
// Keys are normalised to lower case.
func (cl *client) Metadata(key string) (map[string]string, error) {

	hoo, err := cl.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: cl.bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		if notFound(err) {
			return nil, &ErrNoSuchObject{
				Key: key,
			}
		}
		return nil, err
	}

	meta := make(map[string]string)
	for k, v := range hoo.Metadata {
		meta[strings.ToLower(k)] = v
	}

	return meta, nil
}
