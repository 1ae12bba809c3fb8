package s3io

import (
	"errors"
	"fmt"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// notFound reports whether an S3 error means the object does not exist.
// GetObject returns *types.NoSuchKey, but HeadObject surfaces missing keys
// as *types.NotFound or a bare 404 response error, so all shapes are
// checked.
func notFound(err error) bool {
	var nosuchkey *types.NoSuchKey
	if errors.As(err, &nosuchkey) {
		return true
	}

	var notfound *types.NotFound
	if errors.As(err, &notfound) {
		return true
	}

	var responseError *awshttp.ResponseError
	if errors.As(err, &responseError) && responseError.ResponseError.HTTPStatusCode() == http.StatusNotFound {
		return true
	}

	return false
}

type ErrPermissionsTooOpen struct {
	msg string
}

func (e *ErrPermissionsTooOpen) Error() string {
	return e.msg
}

type ErrNoRecipientsFile struct{}

func (e *ErrNoRecipientsFile) Error() string {
	return "recipients file not found: expected in bucket at 'repo/recipients.txt'"
}

type ErrIdentitiesNotFound struct{}

func (e *ErrIdentitiesNotFound) Error() string {
	return "unable to decrypt: no identities available"
}

// ErrNoSuchObject reports a key that doesn't exist in the bucket. Callers
// match it with errors.As when a missing object is a tolerable outcome,
// such as a compensating delete after a failed upload.
type ErrNoSuchObject struct {
	Key string
}

func (e *ErrNoSuchObject) Error() string {
	return fmt.Sprintf("no such object in bucket: %s", e.Key)
}

type ErrNotDownloadable struct {
	key          string
	storageClass string
}

func (e *ErrNotDownloadable) Error() string {
	return fmt.Sprintf("object is not downloadable: storage class is %s", e.storageClass)
}
