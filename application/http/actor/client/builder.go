package client

import (
	"strconv"

	"syncnet/application/http/engine"
	"syncnet/application/http/semantic"
)

// buildParams translates a request for the engine. Body headers the caller
// left out are filled in. onWrite fires on every upload pull.
func buildParams(request *semantic.Request, onWrite func()) engine.RequestParams {
	headers := request.Headers.Clone()

	var upload engine.UploadProvider
	if body := request.Body; body != nil && !request.Method.IsGet() {
		if !headers.Has("Content-Type") && body.ContentType != "" {
			headers.Set("Content-Type", body.ContentType)
		}
		if !headers.Has("Content-Length") {
			headers.Set("Content-Length", strconv.FormatInt(body.ContentLength(), 10))
		}

		upload = &uploadDelegate{
			UploadProvider: engine.NewBytesUpload(body.Content),
			onWrite:        onWrite,
		}
	}

	return engine.RequestParams{
		Method:  request.Method.String(),
		URL:     request.URL.String(),
		Headers: headers.Fields(),
		Upload:  upload,
	}
}

type uploadDelegate struct {
	engine.UploadProvider
	onWrite func()
}

func (u *uploadDelegate) Read(p []byte) (int, error) {
	u.onWrite()
	return u.UploadProvider.Read(p)
}

func (u *uploadDelegate) Rewind() error {
	u.onWrite()
	return u.UploadProvider.Rewind()
}
