package client

import (
	"net/url"
	"strings"

	"syncnet/application/http/httperr"
	"syncnet/application/http/semantic"
)

// RedirectPolicy decides whether a redirect to location is followed. A
// non-nil error denies it and fails the request.
type RedirectPolicy interface {
	Allow(request *semantic.Request, location string) error
}

type RedirectFunc func(request *semantic.Request, location string) error

func (f RedirectFunc) Allow(request *semantic.Request, location string) error {
	return f(request, location)
}

// DefaultRedirect follows redirects unless disabled. FollowScheme allows
// switching between http and https.
type DefaultRedirect struct {
	Follow       bool
	FollowScheme bool
}

func (r DefaultRedirect) Allow(request *semantic.Request, location string) error {
	if !r.Follow {
		return httperr.New(httperr.Redirect, "redirects are disabled, refusing %s -> %s", request, location)
	}

	target, err := url.Parse(location)
	if err != nil {
		return httperr.Wrap(httperr.Redirect, err, "parsing redirect location %q", location)
	}

	// Relative locations keep the scheme.
	if r.FollowScheme || target.Scheme == "" {
		return nil
	}
	if !strings.EqualFold(target.Scheme, request.Scheme()) {
		return httperr.New(httperr.Redirect, "scheme redirects are disabled, refusing %s -> %s", request, location)
	}
	return nil
}
