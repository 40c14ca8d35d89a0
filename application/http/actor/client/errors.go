package client

import (
	"github.com/pkg/errors"

	"syncnet/application/http/engine"
	"syncnet/application/http/httperr"
)

var networkErrorKinds = map[engine.ErrorCode]httperr.Kind{
	engine.ErrorHostnameNotResolved:  httperr.NameResolution,
	engine.ErrorTimedOut:             httperr.Timeout,
	engine.ErrorConnectionTimedOut:   httperr.Timeout,
	engine.ErrorConnectionClosed:     httperr.Connection,
	engine.ErrorConnectionRefused:    httperr.Connection,
	engine.ErrorNetworkChanged:       httperr.Connection,
	engine.ErrorConnectionReset:      httperr.Connection,
	engine.ErrorAddressUnreachable:   httperr.Connection,
	engine.ErrorProtocolFailed:       httperr.Protocol,
	engine.ErrorInternetDisconnected: httperr.NoNetwork,
}

// fromEngineError classifies a failure reported through OnFailed.
func fromEngineError(err error) error {
	var cbErr *engine.CallbackError
	if errors.As(err, &cbErr) {
		return httperr.Classify(cbErr.Cause, httperr.IO)
	}

	var netErr *engine.NetworkError
	if errors.As(err, &netErr) {
		kind, ok := networkErrorKinds[netErr.Code]
		if !ok {
			kind = httperr.IO
		}
		return httperr.Wrap(kind, err, "transfer failed")
	}

	return httperr.Classify(err, httperr.IO)
}

// contextKind classifies an interrupted wait.
func contextKind(err error) httperr.Kind {
	if kind := httperr.KindOf(err); kind != httperr.Unknown {
		return kind
	}
	return httperr.Canceled
}
