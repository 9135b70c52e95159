package error

// GenericError is implemented by application errors that know how to present
// themselves over the REST API.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}
