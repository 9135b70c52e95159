package utils

// ResponseData is the standard envelope returned by every REST endpoint.
type ResponseData struct {
	Status  int         `json:"status"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Results interface{} `json:"results,omitempty"`
}

// PanicIfNeeded panics on error so the Recovery middleware can translate it
// into an HTTP response. Handlers use this instead of repeating error plumbing.
func PanicIfNeeded(err error) {
	if err != nil {
		panic(err)
	}
}
