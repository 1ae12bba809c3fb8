package s3io

import (
	"compress/gzip"
	"context"
	"io"
	"strings"

	"filippo.io/age"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var downloadable = map[string]bool{
	"":                                 true,
	string(types.StorageClassStandard): true,
	string(types.StorageClassReducedRedundancy): true,
	string(types.StorageClassStandardIa):        true,
	string(types.StorageClassOnezoneIa):         true,
}

func (cl *client) checkDownloadable(key string) error {
	hoo, err := cl.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: cl.bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		if notFound(err) {
			return &ErrNoSuchObject{
				Key: key,
			}
		}
		return err
	}

	sclass := string(hoo.StorageClass)
	if downloadable[sclass] {
		return nil
	}

	return &ErrNotDownloadable{
		key:          key,
		storageClass: sclass,
	}
}

func (cl *client) Download(key string, sink io.Writer) (int64, error) {

	// verify we can download the object
	err := cl.checkDownloadable(key)
	if err != nil {
		return 0, err
	}

	// use the simple GetObject method as we won't have a io.WriterAt interface
	//   to use the manager/parallel downloader
	resp, err := cl.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: cl.bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		if notFound(err) {
			return 0, &ErrNoSuchObject{
				Key: key,
			}
		}
		return 0, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body

	// check the metadata to see if decompressing/decryption is needed
	compressed := false
	encrypted := false

	for k := range resp.Metadata {
		if "pgd-compress" == strings.ToLower(k) {
			compressed = true
		}
		if "pgd-encrypt" == strings.ToLower(k) {
			encrypted = true
		}
	}

	// decrypt first
	if encrypted {
		if len(cl.identities) == 0 {
			return 0, &ErrIdentitiesNotFound{}
		}

		dreader, err := age.Decrypt(reader, cl.identities...)
		if err != nil {
			return 0, err
		}

		reader = dreader
	}

	// then decompress
	if compressed {
		gzreader, err := gzip.NewReader(reader)
		if err != nil {
			return 0, err
		}
		defer gzreader.Close()

		reader = gzreader
	}

	nbytes, err := io.Copy(sink, reader)
	if err != nil {
		return 0, err
	}

	return nbytes, nil
}
