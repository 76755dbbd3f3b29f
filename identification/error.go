package identification

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

var identErrors = errx.NewRegistry("IDENT")

var (
	ErrInvalidIdentifier = identErrors.Register(
		"INVALID_IDENTIFIER",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Identifier format is not valid",
	)
	ErrPersonNotFound = identErrors.Register(
		"PERSON_NOT_FOUND",
		errx.TypeNotFound,
		http.StatusNotFound,
		"Person not found",
	)
	ErrPersonAlreadyRegistered = identErrors.Register(
		"PERSON_ALREADY_REGISTERED",
		errx.TypeConflict,
		http.StatusConflict,
		"Person already registered for this channel",
	)
	ErrUpstreamUnavailable = identErrors.Register(
		"UPSTREAM_UNAVAILABLE",
		errx.TypeExternal,
		http.StatusBadGateway,
		"Upstream directory is unavailable",
	)
)

func NewInvalidIdentifierError(identifier string) *errx.Error {
	return identErrors.New(ErrInvalidIdentifier).
		WithDetail("identifier", identifier)
}

func NewPersonNotFoundError(senderID string) *errx.Error {
	return identErrors.New(ErrPersonNotFound).
		WithDetail("sender_id", senderID)
}

func NewPersonAlreadyRegisteredError(identifier string) *errx.Error {
	return identErrors.New(ErrPersonAlreadyRegistered).
		WithDetail("identifier", identifier)
}

func NewUpstreamUnavailableError(cause error) *errx.Error {
	return identErrors.New(ErrUpstreamUnavailable).
		WithDetail("cause", cause.Error())
}
