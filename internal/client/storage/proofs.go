// Package storage uploads challenge proof files to S3-compatible object
// storage and hands back a URL the datastore row can reference.
package storage

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"mime"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/dares/internal/common"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}

	now = time.Now
)

// ProofPrefix is the top-level folder for challenge proofs.
const ProofPrefix = "challenge-proofs"

// DefaultPresignTTL is how long a presigned download link stays valid.
const DefaultPresignTTL = 7 * 24 * time.Hour

// Config locates the bucket. PublicURL, when set, is joined with the object
// key instead of presigning a GET.
type Config struct {
	Bucket     string
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	PublicURL  string
	PresignTTL time.Duration
}

// ProofStore writes proof objects.
type ProofStore struct {
	cfg     Config
	client  *s3.Client
	presign *s3.PresignClient
}

// NewProofStore builds the S3 client. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func NewProofStore(ctx context.Context, cfg Config) (*ProofStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: storage bucket is not set", common.ErrConfiguration)
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = DefaultPresignTTL
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// path-style addressing for MinIO
			o.UsePathStyle = true
		}
	})

	return &ProofStore{cfg: cfg, client: client, presign: s3.NewPresignClient(client)}, nil
}

var keySegment = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ProofKey builds challenge-proofs/<uid>/<challengeID>/<unix-ms>-<random>.<ext>.
func ProofKey(uid, challengeID, filename string, at time.Time) string {
	return path.Join(ProofPrefix, uid, challengeID,
		fmt.Sprintf("%d-%s%s", at.UnixMilli(), randomSuffix(13), extension(filename)))
}

// UploadProof stores body under a fresh proof key and returns its URL.
func (s *ProofStore) UploadProof(ctx context.Context, uid, challengeID, filename string, body io.Reader) (string, error) {
	if uid == "" {
		return "", common.ErrNotSignedIn
	}
	if !keySegment.MatchString(uid) {
		return "", fmt.Errorf("%w: user id %q cannot be used in a storage key", common.ErrValidation, uid)
	}
	if !keySegment.MatchString(challengeID) {
		return "", fmt.Errorf("%w: challenge id %q cannot be used in a storage key", common.ErrValidation, challengeID)
	}
	key := ProofKey(uid, challengeID, filename, now())

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if ct := mime.TypeByExtension(extension(filename)); ct != "" {
		in.ContentType = aws.String(ct)
	}
	if _, err := putObject(s.client, ctx, in); err != nil {
		return "", fmt.Errorf("upload proof: %w", err)
	}
	return s.URL(ctx, key)
}

// URL resolves an object key to something a browser can fetch.
func (s *ProofStore) URL(ctx context.Context, key string) (string, error) {
	if s.cfg.PublicURL != "" {
		return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + strings.TrimLeft(key, "/"), nil
	}
	req, err := presignGetObject(s.presign, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.PresignTTL))
	if err != nil {
		return "", fmt.Errorf("presign proof url: %w", err)
	}
	return req.URL, nil
}

func extension(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" || ext == "." {
		return ".bin"
	}
	return ext
}

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomSuffix(n int) string {
	var b strings.Builder
	max := big.NewInt(int64(len(suffixAlphabet)))
	for range n {
		i, err := rand.Int(rand.Reader, max)
		if err != nil {
			b.WriteByte('0')
			continue
		}
		b.WriteByte(suffixAlphabet[i.Int64()])
	}
	return b.String()
}
