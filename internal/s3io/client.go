package s3io

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"

	"filippo.io/age"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type Client interface {
	Exists(key string) (bool, error)
	ListMatching(prefix string) ([]string, error)
	Metadata(key string) (map[string]string, error)

	Upload(key string, source io.Reader) (int64, error)
	UploadWithMetadata(key string, source io.Reader, compress bool, meta map[string]string) (int64, error)
	UploadFile(key string, path string) (int64, error)

	Download(key string, sink io.Writer) (int64, error)
	DeleteKey(key string) error

	Recipients() []age.Recipient
}

type client struct {
	client     *s3.Client
	bucket     *string
	recipients []age.Recipient
	identities []age.Identity
}

func NewClient(profile, bucket, identitiesFile string) (Client, error) {

	// load the profile
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithSharedConfigProfile(profile))
	if err != nil {
		return nil, err
	}

	// create the client
	s3client := s3.NewFromConfig(cfg)

	// the public encryption keys live in the bucket; the private
	//   identities stay local with the operator
	recipients, err := loadRecipients(s3client, bucket)
	if err != nil {
		return nil, err
	}
	identities, err := loadIdentities(identitiesFile)
	if err != nil {
		return nil, err
	}

	cl := client{
		client:     s3client,
		bucket:     aws.String(bucket),
		recipients: recipients,
		identities: identities,
	}

	return &cl, nil
}

func (cl *client) Recipients() []age.Recipient {
	return cl.recipients
}

func loadRecipients(cl *s3.Client, bucket string) ([]age.Recipient, error) {

	resp, err := cl.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String("repo/recipients.txt"),
	})
	if err != nil {
		var nosuchkey *types.NoSuchKey
		if errors.As(err, &nosuchkey) {
			return nil, &ErrNoRecipientsFile{}
		}
		return nil, err
	}
	defer resp.Body.Close()

	return age.ParseRecipients(resp.Body)
}

func loadIdentities(identitiesFile string) ([]age.Identity, error) {
	// set the default path for 'default'
	if identitiesFile == "default" {
		u, err := user.Current()
		if err != nil {
			return nil, err
		}
		identitiesFile = filepath.Join(u.HomeDir, ".pgdelta", "identities.txt")
	}

	// check the file permissions
	info, err := os.Stat(identitiesFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	perms := info.Mode()
	if perms&0077 != 0 {
		return nil, &ErrPermissionsTooOpen{
			msg: fmt.Sprintf("Permissions on identities file are too open: %#o", perms),
		}
	}

	// load the identities
	f, err := os.Open(identitiesFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	return age.ParseIdentities(f)
}
