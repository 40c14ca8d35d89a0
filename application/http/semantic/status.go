package semantic

type Status struct {
	Code         uint
	ReasonPhrase string
}

func (s Status) IsSuccessful() bool { return 200 <= s.Code && s.Code <= 299 }
func (s Status) IsRedirect() bool   { return 300 <= s.Code && s.Code <= 399 }

var reasonPhrases = map[uint]string{}

func add(s Status) Status {
	reasonPhrases[s.Code] = s.ReasonPhrase
	return s
}

// StatusFromCode returns the status with its default reason phrase.
func StatusFromCode(code uint) (Status, bool) {
	phrase, ok := reasonPhrases[code]
	return Status{Code: code, ReasonPhrase: phrase}, ok
}

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-15
var (
	StatusContinue           = add(Status{100, "Continue"})
	StatusSwitchingProtocols = add(Status{101, "Switching Protocols"})

	StatusOK             = add(Status{200, "OK"})
	StatusCreated        = add(Status{201, "Created"})
	StatusAccepted       = add(Status{202, "Accepted"})
	StatusNoContent      = add(Status{204, "No Content"})
	StatusPartialContent = add(Status{206, "Partial Content"})

	StatusMovedPermanently  = add(Status{301, "Moved Permanently"})
	StatusFound             = add(Status{302, "Found"})
	StatusSeeOther          = add(Status{303, "See Other"})
	StatusNotModified       = add(Status{304, "Not Modified"})
	StatusTemporaryRedirect = add(Status{307, "Temporary Redirect"})
	StatusPermanentRedirect = add(Status{308, "Permanent Redirect"})

	StatusBadRequest      = add(Status{400, "Bad Request"})
	StatusUnauthorized    = add(Status{401, "Unauthorized"})
	StatusForbidden       = add(Status{403, "Forbidden"})
	StatusNotFound        = add(Status{404, "Not Found"})
	StatusRequestTimeout  = add(Status{408, "Request Timeout"})
	StatusTooManyRequests = add(Status{429, "Too Many Requests"})

	StatusInternalServerError = add(Status{500, "Internal Server Error"})
	StatusBadGateway          = add(Status{502, "Bad Gateway"})
	StatusServiceUnavailable  = add(Status{503, "Service Unavailable"})
	StatusGatewayTimeout      = add(Status{504, "Gateway Timeout"})
)
