package storage

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/dares/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubSeams(t *testing.T) {
	t.Helper()
	origLoad, origNew, origPut, origPresign, origNow := loadDefaultAWSConfig, newS3ClientFromConfig, putObject, presignGetObject, now
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
		putObject = origPut
		presignGetObject = origPresign
		now = origNow
	})
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				return aws.Config{}, err
			}
		}
		cfg := aws.Config{Region: lo.Region}
		if lo.Credentials != nil {
			cfg.Credentials = lo.Credentials
		} else {
			cfg.Credentials = credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")
		}
		return cfg, nil
	}
	now = func() time.Time { return time.UnixMilli(1700000000123) }
}

func testConfig() Config {
	return Config{
		Bucket:    "dares",
		Region:    "us-east-1",
		Endpoint:  "http://127.0.0.1:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	}
}

func TestNewProofStore_RequiresBucket(t *testing.T) {
	_, err := NewProofStore(context.Background(), Config{})
	require.ErrorIs(t, err, common.ErrConfiguration)
}

func TestNewProofStore_AppliesOptions(t *testing.T) {
	stubSeams(t)

	var region string
	var hadCreds bool
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		region = lo.Region
		hadCreds = lo.Credentials != nil
		return aws.Config{Region: lo.Region}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return s3.NewFromConfig(cfg, optFns...)
	}

	s, err := NewProofStore(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultPresignTTL, s.cfg.PresignTTL)
	assert.Equal(t, "us-east-1", region)
	assert.True(t, hadCreds)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewProofStore_LoadError(t *testing.T) {
	stubSeams(t)
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	_, err := NewProofStore(context.Background(), testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load-fail")
}

func TestProofKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	key := ProofKey("u1", "c1", "Selfie.JPG", at)
	assert.Regexp(t, regexp.MustCompile(`^challenge-proofs/u1/c1/1700000000123-[0-9a-z]{13}\.jpg$`), key)

	assert.True(t, strings.HasSuffix(ProofKey("u1", "c1", "noext", at), ".bin"))
	assert.NotEqual(t, ProofKey("u1", "c1", "a.png", at), ProofKey("u1", "c1", "a.png", at))
}

func TestUploadProof_PublicURL(t *testing.T) {
	stubSeams(t)
	cfg := testConfig()
	cfg.PublicURL = "https://cdn.example.com/dares/"

	var got *s3.PutObjectInput
	var body string
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		got = in
		b, _ := io.ReadAll(in.Body)
		body = string(b)
		return &s3.PutObjectOutput{}, nil
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		t.Fatal("public url must not presign")
		return nil, nil
	}

	s, err := NewProofStore(context.Background(), cfg)
	require.NoError(t, err)

	url, err := s.UploadProof(context.Background(), "u1", "c1", "proof.png", strings.NewReader("PNG"))
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "dares", aws.ToString(got.Bucket))
	assert.True(t, strings.HasPrefix(aws.ToString(got.Key), "challenge-proofs/u1/c1/1700000000123-"))
	assert.Equal(t, "image/png", aws.ToString(got.ContentType))
	assert.Equal(t, "PNG", body)
	assert.Equal(t, "https://cdn.example.com/dares/"+aws.ToString(got.Key), url)
}

func TestUploadProof_PresignedURL(t *testing.T) {
	stubSeams(t)
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return &s3.PutObjectOutput{}, nil
	}

	s, err := NewProofStore(context.Background(), testConfig())
	require.NoError(t, err)

	url, err := s.UploadProof(context.Background(), "u1", "c1", "proof.jpg", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://127.0.0.1:9000/dares/challenge-proofs/u1/c1/"), url)
	assert.Contains(t, url, "X-Amz-Signature=")
}

func TestUploadProof_Errors(t *testing.T) {
	stubSeams(t)
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, errors.New("put-fail")
	}

	s, err := NewProofStore(context.Background(), testConfig())
	require.NoError(t, err)

	_, err = s.UploadProof(context.Background(), "", "c1", "a.png", strings.NewReader("x"))
	require.ErrorIs(t, err, common.ErrNotSignedIn)

	_, err = s.UploadProof(context.Background(), "u1", "c1", "a.png", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put-fail")
}

func TestUploadProof_RejectsUnsafeKeySegments(t *testing.T) {
	stubSeams(t)
	var puts int
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		puts++
		return &s3.PutObjectOutput{}, nil
	}

	s, err := NewProofStore(context.Background(), testConfig())
	require.NoError(t, err)

	for _, tc := range []struct{ uid, challengeID string }{
		{"u1", "../../x"},
		{"u1", "c1/../../other"},
		{"u1", ""},
		{"../u2", "c1"},
		{"u1", "c 1"},
	} {
		_, err := s.UploadProof(context.Background(), tc.uid, tc.challengeID, "a.png", strings.NewReader("x"))
		require.ErrorIs(t, err, common.ErrValidation, "%s/%s", tc.uid, tc.challengeID)
	}
	assert.Equal(t, 0, puts)

	_, err = s.UploadProof(context.Background(), "u1", "3f0c9a8e-5b1d-4c2e-9f7a-1b2c3d4e5f60", "a.png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, 1, puts)
}

func TestURL_PresignError(t *testing.T) {
	stubSeams(t)
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("presign-fail")
	}

	s, err := NewProofStore(context.Background(), testConfig())
	require.NoError(t, err)
	_, err = s.URL(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "presign-fail")
}
