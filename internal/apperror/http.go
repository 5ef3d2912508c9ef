package apperror

import (
	"net/http"

	"github.com/2beens/runcoach/pkg"
)

// WriteHTTP replies with err's status and user-safe message as a JSON error body.
func WriteHTTP(w http.ResponseWriter, err error) {
	status, message := StatusAndMessage(err)
	pkg.WriteJSONError(w, status, message)
}
