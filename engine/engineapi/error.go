package engineapi

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

var ErrRegistry = errx.NewRegistry("ENGINE_API")

var (
	CodeUnauthorized   = ErrRegistry.Register("UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "No autorizado")
	CodeInvalidRequest = ErrRegistry.Register("INVALID_REQUEST", errx.TypeValidation, http.StatusBadRequest, "Petición inválida")
	CodeWebhookInvalid = ErrRegistry.Register("WEBHOOK_INVALID", errx.TypeValidation, http.StatusBadRequest, "Webhook payload inválido")
)

func ErrUnauthorized() *errx.Error {
	return ErrRegistry.New(CodeUnauthorized)
}

func ErrInvalidRequest() *errx.Error {
	return ErrRegistry.New(CodeInvalidRequest)
}

func ErrWebhookInvalid() *errx.Error {
	return ErrRegistry.New(CodeWebhookInvalid)
}
