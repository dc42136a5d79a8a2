// Package validation decodes and checks incoming quiz requests and estimates
// prompt sizes before they are sent to a provider.
package validation

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/GokulKGit/quiz-API/errors"
	"github.com/GokulKGit/quiz-API/server/processing"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeQuestionRequest reads the JSON body of r into a QuestionRequest for
// category. A body that is not valid JSON or lacks topic, number or level
// yields a 400 ValidationError carrying the standard message; the offending
// fields are kept as the error's cause for logging.
func DecodeQuestionRequest(w http.ResponseWriter, r *http.Request, category processing.Category, maxBytes int64) (processing.QuestionRequest, error) {
	requestID := r.Header.Get("X-Request-ID")
	req := processing.QuestionRequest{Category: category}

	body := r.Body
	if maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return req, errors.NewError(errors.ValidationError, "Request body too large",
				http.StatusRequestEntityTooLarge, requestID, "", err)
		}
		return req, missingFields(requestID, fmt.Errorf("invalid JSON body: %w", err))
	}
	req.Category = category

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return req, missingFields(requestID, fmt.Errorf("missing fields: %s", strings.Join(fields, ", ")))
		}
		return req, missingFields(requestID, err)
	}

	return req, nil
}

func missingFields(requestID string, cause error) *errors.QuizError {
	return errors.NewError(errors.ValidationError, errors.MsgMissingFields,
		http.StatusBadRequest, requestID, "", cause)
}
