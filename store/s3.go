package store

import (
	"bytes"
	"io"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	raven "github.com/getsentry/raven-go"
)

// S3 keeps items in an S3 bucket under a common key prefix. Entry
// documents are a few kilobytes each, so items are read and written
// whole; there is no paging or multipart handling.
//
// Do not change Bucket or Prefix concurrently with calls using the
// structure.
type S3 struct {
	svc    *s3.S3
	Bucket string
	Prefix string
}

var _ Store = &S3{}

// NewS3 creates an S3 store using the given bucket, prepending prefix to
// every key. The prefix lets one bucket carry several stores: with prefix
// "entries/" an Open("hello") looks for the key "entries/hello". The
// credentials in the session are used for all accesses.
func NewS3(bucket, prefix string, awsSession *session.Session) *S3 {
	return &S3{
		Bucket: bucket,
		Prefix: prefix,
		svc:    s3.New(awsSession),
	}
}

// List returns a channel giving every key in this store. Only keys under
// the store's Prefix are returned, so it is safe to use on a bucket
// containing other items.
func (s *S3) List() <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		input := &s3.ListObjectsV2Input{
			Bucket: aws.String(s.Bucket),
			Prefix: aws.String(s.Prefix),
		}
		err := s.svc.ListObjectsV2Pages(input,
			func(page *s3.ListObjectsV2Output, lastpage bool) bool {
				for _, item := range page.Contents {
					out <- strings.TrimPrefix(*item.Key, s.Prefix)
				}
				return !lastpage
			})
		if err != nil {
			log.Println("S3 List:", s.Prefix, err)
			raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix})
		}
	}()
	return out
}

// ListPrefix returns the keys in this store that have the given prefix.
// The argument prefix is added to the store's Prefix.
func (s *S3) ListPrefix(prefix string) ([]string, error) {
	var result []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(s.Prefix + prefix),
	}
	err := s.svc.ListObjectsV2Pages(input,
		func(page *s3.ListObjectsV2Output, lastpage bool) bool {
			for _, item := range page.Contents {
				result = append(result, strings.TrimPrefix(*item.Key, s.Prefix))
			}
			return !lastpage
		})
	if err != nil {
		log.Println("S3 ListPrefix:", s.Prefix, prefix, err)
		raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix, "Pattern": prefix})
	}
	return result, err
}

// Open downloads the item and returns a reader over it along with its
// size.
func (s *S3) Open(key string) (ReadAtCloser, int64, error) {
	output, err := s.svc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		return nil, 0, err
	}
	defer output.Body.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, output.Body); err != nil {
		return nil, 0, err
	}
	data := buf.Bytes()
	return nopCloser{bytes.NewReader(data)}, int64(len(data)), nil
}

// Create returns a writer buffering a new item; the item is uploaded in
// one PUT when the writer is closed.
func (s *S3) Create(key string) (io.WriteCloser, error) {
	_, err := s.svc.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err == nil {
		return nil, ErrKeyExists
	}
	if !isNotFound(err) {
		return nil, err
	}
	return &s3Writer{svc: s.svc, bucket: s.Bucket, key: s.Prefix + key}, nil
}

// Delete removes the given key from the store. It is not an error to
// delete something that doesn't exist.
func (s *S3) Delete(key string) error {
	_, err := s.svc.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		log.Println("S3 Delete:", s.Prefix, key, err)
		raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix, "Key": key})
	}
	return err
}

func isNotFound(err error) bool {
	if ae, ok := err.(awserr.Error); ok {
		switch ae.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }

type s3Writer struct {
	svc    *s3.S3
	bucket string
	key    string
	buf    bytes.Buffer
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *s3Writer) Close() error {
	source := bytes.NewReader(w.buf.Bytes())
	_, err := w.svc.PutObject(&s3.PutObjectInput{
		Body:          source,
		Bucket:        aws.String(w.bucket),
		Key:           aws.String(w.key),
		ContentLength: aws.Int64(int64(source.Len())),
	})
	if err != nil {
		log.Println("S3 Create:", w.key, err)
		raven.CaptureError(err, map[string]string{"Bucket": w.bucket, "Key": w.key})
	}
	return err
}
