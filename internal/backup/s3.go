// Package backup copies the SQLite stores to S3-compatible object storage
// on a schedule. Each run takes a consistent snapshot of every store via
// VACUUM INTO (safe under WAL with concurrent writers), uploads it, and
// removes the local snapshot file. Backups are an operational concern
// layered outside the command/query surface; nothing in the core depends
// on this package.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/dashtam/provider-sync/internal/repository/sqlite"
)

// Config configures the S3 backup target.
type Config struct {
	Bucket string
	Region string
	// Endpoint overrides the S3 endpoint for S3-compatible stores
	// (MinIO, R2). Empty means real AWS S3.
	Endpoint string
	// Prefix is prepended to every object key, e.g. "provider-sync/prod".
	Prefix string
	// AccessKeyID/SecretAccessKey are optional static credentials; when
	// empty the SDK's default chain (env, shared config, IMDS) is used.
	AccessKeyID     string
	SecretAccessKey string
}

// Store pairs a database wrapper with the snapshot name it is backed up
// under.
type Store struct {
	DB   *sqlite.DB
	Name string
}

// S3Backup uploads snapshots of the registered stores to one bucket.
type S3Backup struct {
	uploader *manager.Uploader
	cfg      Config
	stores   []Store
	log      zerolog.Logger
}

// New builds an S3Backup, resolving AWS configuration once up front.
func New(ctx context.Context, cfg Config, stores []Store, log zerolog.Logger) (*S3Backup, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("backup: bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("backup: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Backup{
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		stores:   stores,
		log:      log.With().Str("component", "backup").Logger(),
	}, nil
}

// Name implements scheduler.Job.
func (b *S3Backup) Name() string { return "s3-backup" }

// Run implements scheduler.Job: snapshot and upload every registered
// store. Per-store failures are logged and counted; the job fails only if
// every store failed, so one wedged database does not mask the others'
// successful backups.
func (b *S3Backup) Run(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, 10*time.Minute)
	defer cancel()

	stamp := time.Now().UTC().Format("2006-01-02T15-04-05Z")
	failures := 0
	for _, store := range b.stores {
		if err := b.backupStore(ctx, store, stamp); err != nil {
			failures++
			b.log.Error().Err(err).Str("store", store.Name).Msg("store backup failed")
		}
	}
	if failures == len(b.stores) && failures > 0 {
		return fmt.Errorf("backup: all %d stores failed", failures)
	}
	return nil
}

func (b *S3Backup) backupStore(ctx context.Context, store Store, stamp string) error {
	snapshotPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s.db", store.Name, stamp))
	defer os.Remove(snapshotPath)

	// VACUUM INTO writes a compact, transactionally-consistent copy even
	// while the source database is being written under WAL.
	if _, err := store.DB.Conn().ExecContext(ctx, "VACUUM INTO ?", snapshotPath); err != nil {
		return fmt.Errorf("snapshot %s: %w", store.Name, err)
	}

	f, err := os.Open(snapshotPath)
	if err != nil {
		return fmt.Errorf("open snapshot %s: %w", store.Name, err)
	}
	defer f.Close()

	key := fmt.Sprintf("%s/%s/%s.db", b.cfg.Prefix, store.Name, stamp)
	if b.cfg.Prefix == "" {
		key = fmt.Sprintf("%s/%s.db", store.Name, stamp)
	}

	if _, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return fmt.Errorf("upload %s: %w", store.Name, err)
	}

	b.log.Info().Str("store", store.Name).Str("key", key).Msg("store backed up")
	return nil
}
