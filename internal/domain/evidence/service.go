// Package evidence holds typed views over provider evidence and the naming
// rules fetchers and checks share to find it.
package evidence

import (
	"errors"
	"fmt"
	"strings"
)

// Service is the two letter provider tag that prefixes evidence names.
type Service string

const (
	GitHub    Service = "gh"
	GitLab    Service = "gl"
	Bitbucket Service = "bb"
)

var serviceNames = map[Service]string{
	GitHub:    "Github",
	GitLab:    "Gitlab",
	Bitbucket: "Bitbucket",
}

// DisplayName returns the provider name used in messages.
func (s Service) DisplayName() string {
	if name, ok := serviceNames[s]; ok {
		return name
	}
	return string(s)
}

// ErrNotImplemented is matched by every UnsupportedServiceError.
var ErrNotImplemented = errors.New("provider not implemented")

// UnsupportedServiceError is returned by an accessor whose provider has no
// implementation yet.
type UnsupportedServiceError struct {
	Service Service
}

func (e *UnsupportedServiceError) Error() string {
	return fmt.Sprintf("Support for %s coming soon...", e.Service.DisplayName())
}

func (e *UnsupportedServiceError) Unwrap() error { return ErrNotImplemented }

// ServiceFromName reads the provider tag from an evidence file name.
func ServiceFromName(name string) Service {
	if len(name) < 2 {
		return Service(name)
	}
	return Service(name[:2])
}

// ServiceFromHost maps a repository host to its provider tag.
func ServiceFromHost(host string) Service {
	host = strings.ToLower(host)
	switch {
	case strings.Contains(host, "gitlab"):
		return GitLab
	case strings.Contains(host, "bitbucket"):
		return Bitbucket
	default:
		return GitHub
	}
}

// table maps a provider to the function that extracts a value from its
// schema. Providers missing from a table are unsupported.
type table[T any] map[Service]func() (T, error)

func dispatch[T any](svc Service, t table[T]) (T, error) {
	fn, ok := t[svc]
	if !ok {
		var zero T
		return zero, &UnsupportedServiceError{Service: svc}
	}
	return fn()
}

// lazy memoizes a derived value. Only successful results are kept, and the
// kept value is returned even if the underlying content changes later.
// Not safe for concurrent use.
type lazy[T any] struct {
	done bool
	val  T
}

func (l *lazy[T]) get(fn func() (T, error)) (T, error) {
	if l.done {
		return l.val, nil
	}
	v, err := fn()
	if err != nil {
		return v, err
	}
	l.val, l.done = v, true
	return v, nil
}
