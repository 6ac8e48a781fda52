package domain

import "errors"

var (
	// ErrInvalidReference is returned when no valid video id can be
	// extracted from the supplied reference.
	ErrInvalidReference = errors.New("invalid video reference")
	// ErrDownloadFailed is returned when the extraction tool produced no
	// resolvable audio file.
	ErrDownloadFailed = errors.New("audio download failed")
	// ErrAudioNotFound is returned when the audio artifact path does not exist.
	ErrAudioNotFound = errors.New("audio file not found")
	// ErrAudioEmpty is returned for a zero-byte audio artifact.
	ErrAudioEmpty = errors.New("audio file is empty")
	// ErrAudioUnreadable is returned when the audio cannot be decoded into samples.
	ErrAudioUnreadable = errors.New("audio is unreadable")
	// ErrTranscriptEmpty is returned when readable audio transcribes to nothing.
	ErrTranscriptEmpty = errors.New("transcript is empty")

	// ErrGenerationEmpty is returned when the model produced no output text.
	ErrGenerationEmpty = errors.New("model returned empty output")
	// ErrGenerationUnparsable is returned when no JSON object can be found
	// in the model output.
	ErrGenerationUnparsable = errors.New("no JSON object found in model output")
	// ErrGenerationInvalid is returned when the model output does not match
	// the quiz schema.
	ErrGenerationInvalid = errors.New("model output does not match quiz schema")
	// ErrQuotaExceeded is returned on a vendor rate-limit/quota response.
	// Never retried automatically.
	ErrQuotaExceeded = errors.New("model quota or rate limit exceeded")
	// ErrModelRequestFailed is returned for vendor-side client errors other
	// than quota. Terminal for the creation attempt.
	ErrModelRequestFailed = errors.New("model request failed")

	// ErrInvalidQuestion is returned when a question does not belong to the
	// attempt's quiz.
	ErrInvalidQuestion = errors.New("question does not belong to this quiz")
	// ErrInvalidOption is returned when a selected option is not one of the
	// question's options.
	ErrInvalidOption = errors.New("selected option is not one of the question options")

	// ErrForbidden is returned when the acting identity does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when the resource does not exist. Kept distinct
	// from ErrForbidden.
	ErrNotFound = errors.New("not found")

	// ErrCreationFailed wraps unclassified pipeline faults. Clients see this
	// generic error; the underlying cause is only logged server-side.
	ErrCreationFailed = errors.New("quiz creation failed, please try again")
)

// IsValidationError reports whether err belongs to the client-visible
// validation family of the creation pipeline. Anything else that escapes a
// pipeline stage is an internal fault and gets wrapped into ErrCreationFailed.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidReference,
		ErrDownloadFailed,
		ErrAudioNotFound,
		ErrAudioEmpty,
		ErrAudioUnreadable,
		ErrTranscriptEmpty,
		ErrGenerationEmpty,
		ErrGenerationUnparsable,
		ErrGenerationInvalid,
		ErrQuotaExceeded,
		ErrModelRequestFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
