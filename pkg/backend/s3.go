// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/binrep/binrep/pkg/config"
	"github.com/binrep/binrep/pkg/progress"
)

// S3Backend stores blobs in an S3 bucket. Credentials come from the
// shared AWS config, optionally pinned to a named profile.
type S3Backend struct {
	client  *s3.S3
	bucket  string
	timeout time.Duration
	rep     progress.Reporter
}

var _ Backend = &S3Backend{}

// NewS3Backend builds the client from the backend configuration.
func NewS3Backend(cfg *config.Backend, rep progress.Reporter) (*S3Backend, error) {
	opts := session.Options{
		Config:            aws.Config{Region: aws.String(cfg.Region)},
		SharedConfigState: session.SharedConfigEnable,
	}
	if cfg.Profile != "" {
		opts.Profile = cfg.Profile
	}
	sess, err := session.NewSessionWithOptions(opts)
	if err != nil {
		return nil, errors.Wrap(err, "creating AWS session")
	}
	timeout := time.Duration(config.DefaultRequestTimeoutSecs) * time.Second
	if cfg.RequestTimeoutSecs != nil {
		timeout = time.Duration(*cfg.RequestTimeoutSecs) * time.Second
	}
	return &S3Backend{
		client:  s3.New(sess),
		bucket:  cfg.Bucket,
		timeout: timeout,
		rep:     rep,
	}, nil
}

func mapNoSuchKey(err error) error {
	var aerr awserr.Error
	if stderrors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
		return stderrors.Join(err, ErrNotFound)
	}
	return err
}

func (b *S3Backend) ReadText(ctx context.Context, p string) (string, error) {
	key := cleanKey(p)
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	out, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", errors.Wrapf(mapNoSuchKey(err), "reading s3://%s/%s", b.bucket, key)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", errors.Wrapf(err, "reading s3://%s/%s", b.bucket, key)
	}
	return string(data), nil
}

func (b *S3Backend) WriteText(ctx context.Context, p string, data string) error {
	key := cleanKey(p)
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	_, err := b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(data),
		ACL:    aws.String(s3.ObjectCannedACLBucketOwnerFullControl),
	})
	return errors.Wrapf(err, "writing s3://%s/%s", b.bucket, key)
}

// Upload sends the local file as a single PutObject. The body must
// stay seekable for request signing, so no progress proxy here.
func (b *S3Backend) Upload(ctx context.Context, local string, remote string) error {
	key := cleanKey(remote)
	f, err := os.Open(local)
	if err != nil {
		return errors.Wrapf(err, "opening %s", local)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat %s", local)
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	_, err = b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ACL:           aws.String(s3.ObjectCannedACLBucketOwnerFullControl),
	})
	return errors.Wrapf(err, "uploading s3://%s/%s", b.bucket, key)
}

// Download streams the object into the local file. The configured
// timeout bounds read inactivity, not the total transfer, so large
// blobs are not cut off mid-stream.
func (b *S3Backend) Download(ctx context.Context, remote string, local string) error {
	key := cleanKey(remote)
	out, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}, request.WithResponseReadTimeout(b.timeout))
	if err != nil {
		return errors.Wrapf(mapNoSuchKey(err), "downloading s3://%s/%s", b.bucket, key)
	}
	defer out.Body.Close()
	f, err := os.Create(local)
	if err != nil {
		return errors.Wrapf(err, "creating %s", local)
	}
	var size int64
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	bar := b.rep.NewBar(path.Base(key), size)
	defer bar.Finish()
	if _, err := io.Copy(f, bar.ProxyReader(out.Body)); err != nil {
		f.Close()
		return errors.Wrapf(err, "downloading s3://%s/%s", b.bucket, key)
	}
	return errors.Wrapf(f.Close(), "closing %s", local)
}
