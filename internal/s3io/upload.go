package s3io

import (
	"compress/gzip"
	"context"
	"io"
	"os"

	"filippo.io/age"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func (cl *client) Upload(key string, source io.Reader) (int64, error) {
	return cl.upload(key, source, false, false, nil)
}

func (cl *client) UploadWithMetadata(key string, source io.Reader, compress bool, meta map[string]string) (int64, error) {
	return cl.upload(key, source, compress, true, meta)
}

// UploadFile sends a file that is already in its final stored form, so no
// compression or encryption is applied on the way through.
func (cl *client) UploadFile(key string, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return cl.upload(key, f, false, false, nil)
}

func (cl *client) upload(key string, source io.Reader, compress, encrypt bool, meta map[string]string) (int64, error) {

	// create the map for metadata
	mdata := make(map[string]string)
	for k, v := range meta {
		mdata[k] = v
	}

	// insert the compressor - it's a writer but we need a reader
	//   so use an io.Pipe with goroutine
	if compress {
		mdata["pgd-compress"] = "gzip"
		mdata["pgd-compress-version"] = "001"

		reader, writer := io.Pipe()
		defer reader.Close()

		go func(writer *io.PipeWriter, source io.Reader) {
			gzwriter := gzip.NewWriter(writer)

			_, err := io.Copy(gzwriter, source)

			gzwriter.Close()
			if err != nil {
				writer.CloseWithError(err)
			} else {
				writer.Close()
			}

		}(writer, source)

		source = reader
	}

	// insert the encrypter
	if encrypt {
		mdata["pgd-encrypt"] = "age"
		mdata["pgd-encrypt-version"] = "001"

		reader, writer := io.Pipe()
		defer reader.Close()

		go func(writer *io.PipeWriter, source io.Reader) {
			ewriter, err := age.Encrypt(writer, cl.recipients...)
			if err != nil {
				writer.CloseWithError(err)
				return
			}

			_, err = io.Copy(ewriter, source)

			ewriter.Close()
			if err != nil {
				writer.CloseWithError(err)
			} else {
				writer.Close()
			}

		}(writer, source)

		source = reader
	}

	// count how many bytes actually get uploaded after compression
	//   and encryption
	counter := NewReadCounter(source)
	defer counter.Close()

	// can't use the simple PutObject method because don't know the ContentLength
	// in advance so use an Uploader...

	ctx := context.Background()

	uploader := manager.NewUploader(cl.client)

	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:   cl.bucket,
		Key:      aws.String(key),
		Body:     counter,
		Metadata: mdata,
	})

	return counter.TotalBytes(), err
}
