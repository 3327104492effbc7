// +build s3

package store

// tests the S3 store with an external service. Can use amazon s3, or can
// run a local service with the same API (e.g. Minio).
//
// To run from the command line
//
//    env "AWS_ACCESS_KEY_ID=XXXXX" "AWS_SECRET_ACCESS_KEY=YYYY" go test -tags=s3 -run S3

import (
	"io/ioutil"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
)

func getSession() *session.Session {
	s3Config := &aws.Config{
		Endpoint:         aws.String("http://localhost:9000"),
		Region:           aws.String("us-east-1"),
		DisableSSL:       aws.Bool(true),
		S3ForcePathStyle: aws.Bool(true),
	}
	return session.New(s3Config)
}

func TestS3Roundtrip(t *testing.T) {
	s := NewS3("zoo", "entries/", getSession())

	add(t, s, "collection_demo_12", "<entry>hello</entry>")

	if _, err := s.Create("collection_demo_12"); err != ErrKeyExists {
		t.Errorf("second Create returned %v, expected ErrKeyExists", err)
	}

	r, size, err := s.Open("collection_demo_12")
	if err != nil {
		t.Fatal(err)
	}
	body, err := ioutil.ReadAll(NewReader(r))
	r.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "<entry>hello</entry>" || size != int64(len(body)) {
		t.Errorf("got %q (size %d)", body, size)
	}

	keys, err := s.ListPrefix("collection")
	if err != nil || len(keys) != 1 || keys[0] != "collection_demo_12" {
		t.Errorf("ListPrefix gave %v, %v", keys, err)
	}

	if err := s.Delete("collection_demo_12"); err != nil {
		t.Errorf("Delete returned %s", err)
	}
	if err := s.Delete("collection_demo_12"); err != nil {
		t.Errorf("second Delete returned %s", err)
	}
}
