package intent

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

var intentErrors = errx.NewRegistry("INTENT")

var (
	CodeRuleNotFound = intentErrors.Register(
		"RULE_NOT_FOUND",
		errx.TypeNotFound,
		http.StatusNotFound,
		"Intent rule not found",
	)
	CodeInvalidRule = intentErrors.Register(
		"INVALID_RULE",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Invalid intent rule",
	)
)

func ErrRuleNotFound() *errx.Error {
	return intentErrors.New(CodeRuleNotFound)
}

func ErrInvalidRule() *errx.Error {
	return intentErrors.New(CodeInvalidRule)
}
