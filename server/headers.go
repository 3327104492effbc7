package server

import (
	"crypto/md5"
	"encoding/hex"
	"hash"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/ndlib/fedsword/sword"
)

// parseDeposit builds a Deposit from the request. Everything the pipeline
// needs is copied out of the headers here; nothing downstream touches
// net/http.
func parseDeposit(r *http.Request) (*sword.Deposit, error) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return nil, errors.Wrap(sword.ErrCredentials, "no credentials presented")
	}
	d := &sword.Deposit{
		Username:      user,
		Password:      pass,
		OnBehalfOf:    r.Header.Get("X-On-Behalf-Of"),
		Location:      r.URL.Path,
		ContentType:   r.Header.Get("Content-Type"),
		Packaging:     packagingHeader(r),
		Slug:          r.Header.Get("Slug"),
		ContentLength: r.ContentLength,
		Filename:      dispositionFilename(r.Header.Get("Content-Disposition")),
		UserAgent:     r.Header.Get("User-Agent"),
		Content:       r.Body,
	}
	if d.ContentType == "" {
		d.ContentType = "application/octet-stream"
	}
	var err error
	d.NoOp, err = boolHeader(r, "X-No-Op")
	if err != nil {
		return nil, err
	}
	d.Verbose, err = boolHeader(r, "X-Verbose")
	if err != nil {
		return nil, err
	}
	if sum := r.Header.Get("Content-MD5"); sum != "" {
		d.Content = &checksumReader{r: d.Content, hash: md5.New(), want: sum}
	}
	return d, nil
}

// parseDelete builds a DeleteRequest from the request headers.
func parseDelete(r *http.Request) (*sword.DeleteRequest, error) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return nil, errors.Wrap(sword.ErrCredentials, "no credentials presented")
	}
	dr := &sword.DeleteRequest{
		Username:   user,
		Password:   pass,
		OnBehalfOf: r.Header.Get("X-On-Behalf-Of"),
		Location:   r.URL.Path,
		UserAgent:  r.Header.Get("User-Agent"),
	}
	var err error
	dr.NoOp, err = boolHeader(r, "X-No-Op")
	return dr, err
}

// packagingHeader returns the declared packaging format. Older clients
// send X-Format-Namespace instead of X-Packaging; both are honored.
func packagingHeader(r *http.Request) string {
	if p := r.Header.Get("X-Packaging"); p != "" {
		return p
	}
	return r.Header.Get("X-Format-Namespace")
}

// boolHeader reads an optional boolean header. An absent header is false;
// anything other than "true" or "false" is a client error rather than a
// silent default.
func boolHeader(r *http.Request, name string) (bool, error) {
	v := r.Header.Get(name)
	switch strings.ToLower(v) {
	case "":
		return false, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, errors.Wrapf(sword.ErrBadRequest, "header %s must be true or false, not %q", name, v)
}

func dispositionFilename(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// checksumReader verifies the body against the declared digest as it is
// consumed. A mismatch is only detectable at EOF, which is still before
// anything has been written to the repository.
type checksumReader struct {
	r    io.Reader
	hash hash.Hash
	want string
}

func (cr *checksumReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.hash.Write(p[:n])
	if err == io.EOF {
		got := hex.EncodeToString(cr.hash.Sum(nil))
		if !strings.EqualFold(got, cr.want) {
			return n, errors.Wrapf(sword.ErrContentNotAccepted,
				"content digest %s does not match declared %s", got, cr.want)
		}
	}
	return n, err
}
