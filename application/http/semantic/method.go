package semantic

type Method string

const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodConnect Method = "CONNECT"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
)

func (m Method) String() string { return string(m) }

func (m Method) IsGet() bool  { return m == MethodGet }
func (m Method) IsPost() bool { return m == MethodPost }

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-9.2.1-3
func (m Method) IsSafe() bool {
	switch m {
	case MethodGet, MethodHead, MethodOptions, MethodTrace:
		return true
	}
	return false
}
