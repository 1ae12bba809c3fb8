package s3io

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stretchr/testify/require"
	"testing"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

func responseError(status int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{
				Response: &http.Response{StatusCode: status},
			},
			Err: errors.New("api error"),
		},
	}
}

func TestNotFoundMatchesGetObjectError(t *testing.T) {
	require.True(t, notFound(&types.NoSuchKey{}))
}

func TestNotFoundMatchesHeadObjectError(t *testing.T) {
	// HeadObject reports a missing key as NotFound or a bare 404, never
	// as NoSuchKey
	require.True(t, notFound(&types.NotFound{}))
	require.True(t, notFound(responseError(http.StatusNotFound)))
}

func TestNotFoundMatchesWrappedErrors(t *testing.T) {
	err := fmt.Errorf("heading object: %w", responseError(http.StatusNotFound))
	require.True(t, notFound(err))
}

func TestNotFoundRejectsOtherErrors(t *testing.T) {
	require.False(t, notFound(responseError(http.StatusForbidden)))
	require.False(t, notFound(errors.New("connection reset")))
	require.False(t, notFound(nil))
}
