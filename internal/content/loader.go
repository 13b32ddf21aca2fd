package content

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/clarus-app/clarus-web/internal/cryptoutil"
	"github.com/clarus-app/clarus-web/internal/log"
	"github.com/clarus-app/clarus-web/internal/xerrors"
)

// Narrow views of the AWS clients, so loader tests run without credentials.
type parameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// SignatureVerifier checks a detached signature over the bundle bytes.
// Satisfied by cryptoutil.KMSVerifier.
type SignatureVerifier interface {
	VerifySignature(ctx context.Context, message, signature []byte) error
}

type LoaderOptions struct {
	Logger log.Logger

	// SSMParam holds the SHA-256 digest of the current release bundle.
	SSMParam string

	// Bundles live at s3://{bucket}/{prefix}/{digest}.tar.gz, with an
	// optional detached signature at the same key plus ".sig".
	S3Bucket string
	S3Prefix string

	// Verifier, when set, makes a valid signature mandatory for every
	// bundle.
	Verifier SignatureVerifier

	// AWSConfig overrides the default credential chain, mainly for tests.
	AWSConfig *aws.Config
}

type Loader struct {
	opts   LoaderOptions
	ssm    parameterAPI
	s3     objectAPI
	logger log.Logger
}

func NewLoader(ctx context.Context, opts LoaderOptions) (*Loader, error) {
	if opts.SSMParam == "" {
		return nil, xerrors.New("SSMParam is required")
	}
	if opts.S3Bucket == "" {
		return nil, xerrors.New("S3Bucket is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	var awsCfg aws.Config
	if opts.AWSConfig != nil {
		awsCfg = *opts.AWSConfig
	} else {
		var err error
		awsCfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, xerrors.Wrap(err, "load AWS config")
		}
	}

	return &Loader{
		opts:   opts,
		ssm:    ssm.NewFromConfig(awsCfg),
		s3:     s3.NewFromConfig(awsCfg),
		logger: opts.Logger,
	}, nil
}

// FetchReleaseHash reads the current release digest from SSM.
func (l *Loader) FetchReleaseHash(ctx context.Context) (string, error) {
	out, err := l.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(l.opts.SSMParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", l.opts.SSMParam)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", l.opts.SSMParam)
	}

	hash := strings.TrimSpace(*out.Parameter.Value)
	if hash == "" {
		return "", xerrors.Newf("SSM parameter %s is empty", l.opts.SSMParam)
	}
	return hash, nil
}

func (l *Loader) bundleKey(hash string) string {
	if l.opts.S3Prefix != "" {
		return fmt.Sprintf("%s/%s.tar.gz", l.opts.S3Prefix, hash)
	}
	return hash + ".tar.gz"
}

// Load fetches whatever release SSM currently points at.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	hash, err := l.FetchReleaseHash(ctx)
	if err != nil {
		return nil, err
	}
	return l.LoadHash(ctx, hash)
}

// LoadHash downloads, verifies, and extracts one bundle by digest.
func (l *Loader) LoadHash(ctx context.Context, hash string) (*Snapshot, error) {
	loadedAt := time.Now().UTC()
	key := l.bundleKey(hash)

	l.logger.Info(ctx, "downloading content bundle",
		"bucket", l.opts.S3Bucket,
		"key", key,
	)

	data, err := l.fetchObject(ctx, key, maxBundleBytes)
	if err != nil {
		return nil, err
	}

	actual := cryptoutil.SHA256Hex(data)
	// constant-time comparison is house style for digests even when the
	// value is not secret
	if !cryptoutil.HashEqual(actual, hash) {
		return nil, xerrors.Newf("bundle checksum mismatch: expected %s, got %s", hash, actual)
	}

	signed := false
	if l.opts.Verifier != nil {
		sig, err := l.fetchObject(ctx, key+".sig", 1<<20)
		if err != nil {
			return nil, xerrors.Wrap(err, "fetch bundle signature")
		}
		if err := l.opts.Verifier.VerifySignature(ctx, data, sig); err != nil {
			return nil, xerrors.Wrap(err, "verify bundle signature")
		}
		signed = true
	}

	contentFS, err := extractBundle(data)
	if err != nil {
		return nil, xerrors.Wrap(err, "extract bundle")
	}

	manifest, err := LoadManifest(contentFS)
	if err != nil {
		// missing manifest downgrades to a warning; the watcher's
		// validation decides whether that is acceptable
		l.logger.Warn(ctx, "bundle has no usable manifest",
			"hash", hash,
			"error", err,
		)
		manifest = nil
	}

	meta := Meta{
		SHA256:     hash,
		Source:     SourceBundle,
		Signed:     signed,
		VerifiedAt: time.Now().UTC(),
	}
	if manifest != nil {
		meta.Version = manifest.Version
		meta.BuiltAt = manifest.CreatedAt
	}

	l.logger.Info(ctx, "content bundle loaded",
		"hash", hash,
		"version", meta.Version,
		"signed", signed,
		"bytes", len(data),
	)

	return &Snapshot{
		FS:       contentFS,
		Meta:     meta,
		Manifest: manifest,
		LoadedAt: loadedAt,
	}, nil
}

// LoadIntoManager fetches the current release and swaps it in.
func (l *Loader) LoadIntoManager(ctx context.Context, mgr *Manager) error {
	snap, err := l.Load(ctx)
	if err != nil {
		return err
	}
	mgr.Set(*snap)
	return nil
}

func (l *Loader) fetchObject(ctx context.Context, key string, limit int64) ([]byte, error) {
	out, err := l.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.opts.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "get s3://%s/%s", l.opts.S3Bucket, key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, limit+1))
	if err != nil {
		return nil, xerrors.Wrapf(err, "read s3://%s/%s", l.opts.S3Bucket, key)
	}
	if int64(len(data)) > limit {
		return nil, xerrors.Newf("s3://%s/%s exceeds %d bytes", l.opts.S3Bucket, key, limit)
	}
	return data, nil
}
