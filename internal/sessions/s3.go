package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/kusogate/internal/common"
	"github.com/dmitrijs2005/kusogate/internal/models"
)

const (
	s3KeyPrefix        = "sessions/"
	s3TTLMetadataKey   = "ttl"
	s3MaxCASAttempts   = 5
	s3ContentTypeJSON  = "application/json"
	s3PreconditionCode = "PreconditionFailed"
	s3ConflictCode     = "ConditionalRequestConflict"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type s3Document struct {
	SessionID      string `json:"session_id"`
	EncryptedToken string `json:"encrypted_user_token"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
	TTL            int64  `json:"ttl"`
}

func (d *s3Document) toModel() *models.AuthSession {
	return &models.AuthSession{
		SessionID:      d.SessionID,
		EncryptedToken: d.EncryptedToken,
		Status:         models.Status(d.Status),
		Error:          d.Error,
		ExpiresAt:      time.Unix(d.TTL, 0),
	}
}

// S3Store keeps one JSON object per session in an S3 (or S3-compatible)
// bucket. Creation uses If-None-Match and status changes use If-Match on
// the ETag that was read, so concurrent writers cannot both succeed.
type S3Store struct {
	client S3API
	bucket string
	now    func() time.Time
}

func NewS3Store(client S3API, bucket string, opts ...Option) *S3Store {
	o := buildOptions(opts)
	return &S3Store{client: client, bucket: bucket, now: o.now}
}

func (s *S3Store) key(sessionID string) string {
	return s3KeyPrefix + sessionID
}

func isPreconditionFailure(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case s3PreconditionCode, s3ConflictCode:
			return true
		}
	}
	return false
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}

// read returns the stored document and its ETag, or common.ErrorNotFound.
func (s *S3Store) read(ctx context.Context, sessionID string) (*s3Document, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, "", common.ErrorNotFound
		}
		return nil, "", fmt.Errorf("s3 get: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("s3 read body: %w", err)
	}

	var doc s3Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, "", fmt.Errorf("unmarshal session: %w", err)
	}
	return &doc, aws.ToString(out.ETag), nil
}

// write stores doc. An empty etag means create-only.
func (s *S3Store) write(ctx context.Context, doc *s3Document, etag string) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(doc.SessionID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(s3ContentTypeJSON),
		Metadata:    map[string]string{s3TTLMetadataKey: strconv.FormatInt(doc.TTL, 10)},
	}
	if etag == "" {
		in.IfNoneMatch = aws.String("*")
	} else {
		in.IfMatch = aws.String(etag)
	}

	_, err = s.client.PutObject(ctx, in)
	return err
}

func (s *S3Store) Put(ctx context.Context, session *models.AuthSession) error {
	now := s.now()
	if err := session.Validate(now); err != nil {
		return err
	}

	doc := &s3Document{
		SessionID:      session.SessionID,
		EncryptedToken: session.EncryptedToken,
		Status:         string(session.Status),
		TTL:            session.ExpiresAt.Unix(),
	}

	err := s.write(ctx, doc, "")
	if err == nil {
		return nil
	}
	if !isPreconditionFailure(err) {
		return fmt.Errorf("s3 put: %w", err)
	}

	// An object exists; it may be replaced only when it has expired.
	existing, etag, err := s.read(ctx, session.SessionID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		etag = ""
	case err != nil:
		return err
	case !existing.toModel().Expired(now):
		return common.ErrAlreadyExists
	}

	if err := s.write(ctx, doc, etag); err != nil {
		if isPreconditionFailure(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("s3 put: %w", err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, sessionID string) (*models.AuthSession, error) {
	doc, _, err := s.read(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session := doc.toModel()
	if session.Expired(s.now()) {
		return nil, common.ErrorNotFound
	}
	return session, nil
}

func (s *S3Store) MarkComplete(ctx context.Context, sessionID string) error {
	return s.finish(ctx, sessionID, models.StatusComplete, "")
}

func (s *S3Store) MarkFailed(ctx context.Context, sessionID string, reason string) error {
	return s.finish(ctx, sessionID, models.StatusFailed, reason)
}

func (s *S3Store) finish(ctx context.Context, sessionID string, status models.Status, reason string) error {
	for attempt := 0; attempt < s3MaxCASAttempts; attempt++ {
		doc, etag, err := s.read(ctx, sessionID)
		if err != nil {
			return err
		}
		if doc.toModel().Expired(s.now()) {
			return common.ErrorNotFound
		}
		if models.Status(doc.Status) != models.StatusPending {
			return common.ErrAlreadyTerminal
		}

		doc.Status = string(status)
		doc.Error = reason

		err = s.write(ctx, doc, etag)
		if err == nil {
			return nil
		}
		if !isPreconditionFailure(err) {
			return fmt.Errorf("s3 update: %w", err)
		}
		// someone else wrote in between; re-read and decide again
	}
	return fmt.Errorf("s3 update: %w", common.ErrorInternal)
}

// Reap deletes session objects whose ttl metadata is in the past.
func (s *S3Store) Reap(ctx context.Context) (int, error) {
	now := s.now().Unix()
	removed := 0

	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s3KeyPrefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return removed, fmt.Errorf("s3 list: %w", err)
		}

		for _, obj := range page.Contents {
			head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				if isNoSuchKey(err) {
					continue
				}
				return removed, fmt.Errorf("s3 head: %w", err)
			}

			ttl, err := strconv.ParseInt(head.Metadata[s3TTLMetadataKey], 10, 64)
			if err != nil || ttl > now {
				continue
			}

			_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket:  aws.String(s.bucket),
				Key:     obj.Key,
				IfMatch: head.ETag,
			})
			if err != nil {
				if isPreconditionFailure(err) {
					continue
				}
				return removed, fmt.Errorf("s3 delete: %w", err)
			}
			removed++
		}
	}
	return removed, nil
}
