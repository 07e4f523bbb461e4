package http

// Status codes the server emits
const (
	StatusOK                  = 200
	StatusBadRequest          = 400
	StatusUnauthorized        = 401
	StatusForbidden           = 403
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405
	StatusRequestTimeout      = 408
	StatusInternalServerError = 500
)

// NormalizeStatus maps codes outside the table to 500.
func NormalizeStatus(code int) int {
	switch code {
	case StatusOK, StatusBadRequest, StatusUnauthorized, StatusForbidden,
		StatusNotFound, StatusMethodNotAllowed, StatusRequestTimeout:
		return code
	default:
		return StatusInternalServerError
	}
}

// StatusText returns the reason phrase for code.
func StatusText(code int) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "Bad Request"
	case StatusUnauthorized:
		return "Unauthorized"
	case StatusForbidden:
		return "Forbidden"
	case StatusNotFound:
		return "Not Found"
	case StatusMethodNotAllowed:
		return "Method Not Allowed"
	case StatusRequestTimeout:
		return "Request Timeout"
	default:
		return "Internal Server Error"
	}
}
