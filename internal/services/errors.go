// Package services holds the application logic of the vehicle assistant:
// chats and their transcripts, the two-phase conversation orchestrator and
// the tool registry the model acts through.
//
// This file centralizes the service-level error values so that handlers can
// map them to HTTP results consistently.
package services

import "errors"

// Chat and transcript errors.
var (
	// ErrChatNotFound indicates that the requested chat does not exist or is not
	// accessible to the current user.
	ErrChatNotFound = errors.New("chat not found")

	// ErrEmptyPrompt is returned when a turn carries neither text nor
	// attachments.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when the turn text exceeds the configured limit.
	ErrTooLong = errors.New("prompt too long")

	// ErrMessageNotFound indicates that the requested message does not exist
	// in the chat.
	ErrMessageNotFound = errors.New("message not found")
)

// Attachment errors.
var (
	// ErrTooManyAttachments is returned when a turn exceeds the per-turn
	// attachment limit.
	ErrTooManyAttachments = errors.New("too many attachments")

	// ErrUnsupportedAttachment is returned for attachments that are neither
	// an image nor a PDF.
	ErrUnsupportedAttachment = errors.New("unsupported attachment type")
)

// Record errors, surfaced to HTTP read endpoints. Tools report the same
// conditions as NotFound results instead.
var (
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrNoImage         = errors.New("invoice has no stored image")
)
