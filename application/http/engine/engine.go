// Package engine defines the asynchronous, callback driven network engine
// the client is built upon.
//
// An engine builds cancelable requests bound to a [Callback] and an
// [Executor]. Every callback of one request is delivered through its
// executor, so callbacks are serialized per request. Exactly one terminal
// callback (OnSucceeded, OnFailed or OnCanceled) fires for every request
// that was started or canceled.
package engine

// Executor runs callback tasks. Implementations must not run tasks on the
// goroutine calling Execute.
type Executor interface {
	Execute(task func())
}

type Engine interface {
	// NewRequest builds a request without starting any network activity.
	NewRequest(params RequestParams, cb Callback, exec Executor) (Request, error)
	// Shutdown tears the engine down. Requests still in flight are not
	// waited for.
	Shutdown() error
}

type RequestParams struct {
	Method  string
	URL     string
	Headers map[string][]string
	// Upload is nil when there is no request body.
	Upload UploadProvider
}

// Request is one cancelable transfer.
type Request interface {
	Start()
	// FollowRedirect resumes a transfer paused in OnRedirectReceived.
	FollowRedirect()
	// Read asks for the next chunk of the body to be read into buf.
	// Completion is signaled by OnReadCompleted, or OnSucceeded at the end
	// of the body.
	Read(buf []byte)
	Cancel()
	IsDone() bool
}

type ResponseInfo struct {
	URL                string
	StatusCode         int
	StatusText         string
	Headers            map[string][]string
	NegotiatedProtocol string
}

// Callback receives the events of one request. Methods must not block.
//
// OnRedirectReceived either calls [Request.FollowRedirect], or returns an
// error which fails the request with a [CallbackError]. Doing neither leaves
// the request paused.
type Callback interface {
	OnRedirectReceived(req Request, info *ResponseInfo, location string) error
	OnResponseStarted(req Request, info *ResponseInfo)
	OnReadCompleted(req Request, info *ResponseInfo, n int)
	OnSucceeded(req Request, info *ResponseInfo)
	OnFailed(req Request, info *ResponseInfo, err error)
	OnCanceled(req Request, info *ResponseInfo)
}
