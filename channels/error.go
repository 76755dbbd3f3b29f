package channels

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

var channelErrors = errx.NewRegistry("CHANNEL")

var (
	CodeChannelNotFound = channelErrors.Register(
		"CHANNEL_NOT_FOUND",
		errx.TypeNotFound,
		http.StatusNotFound,
		"Channel not found",
	)
	CodeAdapterNotFound = channelErrors.Register(
		"ADAPTER_NOT_FOUND",
		errx.TypeNotFound,
		http.StatusNotFound,
		"No adapter registered for channel type",
	)
	CodeInvalidChannelConfig = channelErrors.Register(
		"INVALID_CHANNEL_CONFIG",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Invalid channel configuration",
	)
	CodeSendFailed = channelErrors.Register(
		"SEND_FAILED",
		errx.TypeExternal,
		http.StatusBadGateway,
		"Failed to send message through channel",
	)
	CodeWebhookRejected = channelErrors.Register(
		"WEBHOOK_REJECTED",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Webhook payload could not be processed",
	)
	CodeMediaUploadFailed = channelErrors.Register(
		"MEDIA_UPLOAD_FAILED",
		errx.TypeExternal,
		http.StatusBadGateway,
		"Failed to upload media attachment",
	)
)

func ErrChannelNotFound() *errx.Error {
	return channelErrors.New(CodeChannelNotFound)
}

func ErrAdapterNotFound() *errx.Error {
	return channelErrors.New(CodeAdapterNotFound)
}

func ErrInvalidChannelConfig() *errx.Error {
	return channelErrors.New(CodeInvalidChannelConfig)
}

func ErrSendFailed() *errx.Error {
	return channelErrors.New(CodeSendFailed)
}

func ErrWebhookRejected() *errx.Error {
	return channelErrors.New(CodeWebhookRejected)
}

func ErrMediaUploadFailed() *errx.Error {
	return channelErrors.New(CodeMediaUploadFailed)
}
