package server

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/ndlib/fedsword/handler"
	"github.com/ndlib/fedsword/sword"
)

// A Policy decides which users may deposit into which collections. The
// user has already authenticated against the repository by the time the
// policy is consulted; the policy only answers the authorization question.
// It also supplies the collection list for the service document.
type Policy interface {
	// Authorize returns nil if user may deposit into collection, and an
	// error wrapping sword.ErrForbidden otherwise.
	Authorize(user, collection string) error

	// AcceptsContent returns nil if collection takes deposits of the
	// given content type and packaging, and an error wrapping
	// sword.ErrContentNotAccepted otherwise.
	AcceptsContent(collection, contentType, packaging string) error

	// Collections lists the collections this policy knows about, for the
	// service document. May be empty if the policy is open-ended.
	Collections() []string
}

// acceptsContent is the acceptability rule shared by the policies. Every
// content type is taken, since the fallback handler stores arbitrary
// binary content, but an unrecognized packaging is refused rather than
// silently treated as unpackaged.
func acceptsContent(collection, contentType, packaging string) error {
	switch packaging {
	case "", handler.PackagingMETS:
		return nil
	}
	return errors.Wrapf(sword.ErrContentNotAccepted, "packaging %s is not accepted by %s", packaging, collection)
}

// OpenPolicy allows every authenticated user to deposit anywhere. It is
// the default when no policy is configured.
type OpenPolicy struct{}

func (OpenPolicy) Authorize(user, collection string) error { return nil }
func (OpenPolicy) Collections() []string                   { return nil }

func (OpenPolicy) AcceptsContent(collection, contentType, packaging string) error {
	return acceptsContent(collection, contentType, packaging)
}

// A ListPolicy is backed by a predefined list of collections, read from r
// upon creation. The reader r should consist of a sequence of collection
// entries, separated by newlines. Each entry has the form:
//
//	<collection>  <user> <user> ...
//
// The fields are delineated by whitespace (spaces or tabs). A user of "*"
// means any authenticated user may deposit into the collection. Empty
// lines and lines beginning with a hash '#' are skipped. Collections not
// listed reject every deposit.
func NewListPolicy(r io.Reader) (Policy, error) {
	entries := make(map[string][]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		pieces := strings.Fields(scanner.Text())
		// skip blank lines or lines beginning with a '#'
		if len(pieces) == 0 || pieces[0][0] == '#' {
			continue
		}
		entries[pieces[0]] = append(entries[pieces[0]], pieces[1:]...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return listPolicy{entries: entries}, nil
}

// NewListPolicyFile is a convenience function that reads the contents of
// the given file into a ListPolicy. The file should have the same format
// that NewListPolicy expects.
func NewListPolicyFile(fname string) (Policy, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewListPolicy(f)
}

// NewListPolicyString is a convenience function that passes the given
// string into a ListPolicy.
func NewListPolicyString(data string) (Policy, error) {
	return NewListPolicy(strings.NewReader(data))
}

type listPolicy struct {
	entries map[string][]string // collection -> allowed users
}

func (lp listPolicy) Authorize(user, collection string) error {
	users, ok := lp.entries[collection]
	if !ok {
		return errors.Wrapf(sword.ErrForbidden, "unknown collection %s", collection)
	}
	for _, u := range users {
		if u == "*" || u == user {
			return nil
		}
	}
	return errors.Wrapf(sword.ErrForbidden, "user %s may not deposit into %s", user, collection)
}

func (lp listPolicy) AcceptsContent(collection, contentType, packaging string) error {
	return acceptsContent(collection, contentType, packaging)
}

func (lp listPolicy) Collections() []string {
	result := make([]string, 0, len(lp.entries))
	for c := range lp.entries {
		result = append(result, c)
	}
	sort.Strings(result)
	return result
}
