package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/YashMayekar/Resizer/internal/config"
)

var ErrQueueFull = errors.New("artifact upload queue is full")

type uploadReq struct {
	key         string
	contentType string
	path        string
}

// Storage mirrors finished artifacts to an S3-compatible bucket in the
// background. Uploads never run on the serve path; a full queue drops the
// mirror copy, never the job.
type Storage struct {
	bucket         string
	workers        int
	maxRetries     int
	retryBaseDelay time.Duration

	client   *s3.Client
	uploader *manager.Uploader
	queue    chan uploadReq
	wg       sync.WaitGroup
	log      zerolog.Logger
}

func NewStorage(cfg *config.ArtifactConfig, log zerolog.Logger) (*Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretKey, "",
		)),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	s := &Storage{
		bucket:         cfg.BucketName,
		workers:        4,
		maxRetries:     3,
		retryBaseDelay: 300 * time.Millisecond,
		client:         client,
		uploader:       manager.NewUploader(client),
		queue:          make(chan uploadReq, 256),
		log:            log,
	}
	return s, nil
}

// Start launches the upload workers; they drain until ctx is cancelled.
func (s *Storage) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	s.log.Info().Str("bucket", s.bucket).Int("workers", s.workers).Msg("artifact mirror started")
}

// Close waits for in-flight uploads to finish.
func (s *Storage) Close() {
	close(s.queue)
	s.wg.Wait()
}

// Enqueue schedules one artifact for mirroring without blocking.
func (s *Storage) Enqueue(ctx context.Context, key, contentType, path string) error {
	select {
	case s.queue <- uploadReq{key: key, contentType: contentType, path: path}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (s *Storage) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-s.queue:
			if !ok {
				return
			}
			s.upload(ctx, req)
		}
	}
}

func (s *Storage) upload(ctx context.Context, req uploadReq) {
	contentType := req.contentType
	if contentType == "" {
		if mt, err := mimetype.DetectFile(req.path); err == nil {
			contentType = mt.String()
		} else {
			contentType = "application/octet-stream"
		}
	}

	for attempt := 1; ; attempt++ {
		f, err := os.Open(req.path)
		if err != nil {
			// Likely reaped before the mirror got to it; nothing to retry.
			s.log.Warn().Err(err).Str("key", req.key).Msg("artifact gone before mirror upload")
			return
		}

		_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(req.key),
			Body:        f,
			ContentType: aws.String(contentType),
		})
		f.Close()
		if err == nil {
			s.log.Info().Str("key", req.key).Msg("artifact mirrored")
			return
		}
		if attempt > s.maxRetries || ctx.Err() != nil {
			s.log.Error().Err(err).Str("key", req.key).Msg("artifact mirror upload failed")
			return
		}

		timer := time.NewTimer(s.retryBaseDelay << (attempt - 1))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
