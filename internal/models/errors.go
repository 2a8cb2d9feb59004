package models

import "errors"

// ErrValidation is the sentinel wrapped by every rejected SubmitRequest.
// Transports check it with errors.Is and map it to a 400-class response.
var ErrValidation = errors.New("validation failed")
