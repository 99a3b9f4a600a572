package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"sandwich_hub/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// requestError describes a malformed request body; its text goes back to the client.
type requestError struct{ msg string }

func (e *requestError) Error() string  { return e.msg }
func (e *requestError) Public() string { return e.msg }
func (e *requestError) Unwrap() error  { return domain.ErrValidation }

// decodeJSON reads the body into dst and checks its validate tags. Failures wrap domain.ErrValidation.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &requestError{msg: "invalid JSON body"}
	}
	if err := validate.Struct(dst); err != nil {
		return &requestError{msg: describe(err)}
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
