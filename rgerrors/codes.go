package rgerrors

import "net/http"

// Code identifies a failure condition in the signaling resilience layer.
// The set is closed: callers switch on codes, clients key UI behavior on
// them, and every code maps to exactly one default transport status.
type Code string

// Authentication and authorization.
const (
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeInvalidToken     Code = "INVALID_TOKEN"
	CodeTokenExpired     Code = "TOKEN_EXPIRED"
	CodePermissionDenied Code = "PERMISSION_DENIED"
)

// Rate limiting.
const (
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"
	CodeTooManyMessages   Code = "TOO_MANY_MESSAGES"
	CodeTooManyRequests   Code = "TOO_MANY_REQUESTS"
)

// Capacity.
const (
	CodeRoomFull             Code = "ROOM_FULL"
	CodeMaxRoomsReached      Code = "MAX_ROOMS_REACHED"
	CodeMaxParticipants      Code = "MAX_PARTICIPANTS_REACHED"
	CodeStorageQuotaExceeded Code = "STORAGE_QUOTA_EXCEEDED"
)

// Room state.
const (
	CodeRoomNotFound      Code = "ROOM_NOT_FOUND"
	CodeRoomLocked        Code = "ROOM_LOCKED"
	CodeRoomClosed        Code = "ROOM_CLOSED"
	CodeRoomAlreadyExists Code = "ROOM_ALREADY_EXISTS"
	CodeInvalidRoomState  Code = "INVALID_ROOM_STATE"
)

// Participant state.
const (
	CodeParticipantNotFound Code = "PARTICIPANT_NOT_FOUND"
	CodeParticipantBanned   Code = "PARTICIPANT_BANNED"
	CodeAlreadyInRoom       Code = "ALREADY_IN_ROOM"
	CodeNotInRoom           Code = "NOT_IN_ROOM"
)

// Media and signaling.
const (
	CodeInvalidSDP          Code = "INVALID_SDP"
	CodeInvalidICECandidate Code = "INVALID_ICE_CANDIDATE"
	CodeInvalidMessage      Code = "INVALID_MESSAGE"
	CodeInvalidPayload      Code = "INVALID_PAYLOAD"
	CodeUnsupportedMedia    Code = "UNSUPPORTED_MEDIA"
)

// Recording.
const (
	CodeRecordingNotAllowed    Code = "RECORDING_NOT_ALLOWED"
	CodeRecordingAlreadyActive Code = "RECORDING_ALREADY_ACTIVE"
)

// File sharing.
const (
	CodeFileSharingNotAllowed Code = "FILE_SHARING_NOT_ALLOWED"
	CodeFileTooLarge          Code = "FILE_TOO_LARGE"
	CodeMaliciousFileDetected Code = "MALICIOUS_FILE_DETECTED"
)

// Network and service.
const (
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeTimeout            Code = "TIMEOUT"
)

// Validation.
const (
	CodeValidationFailed Code = "VALIDATION_FAILED"
	CodeInvalidRoomID    Code = "INVALID_ROOM_ID"
	CodeInvalidUsername  Code = "INVALID_USERNAME"
	CodeInvalidSettings  Code = "INVALID_SETTINGS"
)

// General.
const (
	CodeInternalError   Code = "INTERNAL_ERROR"
	CodeOperationFailed Code = "OPERATION_FAILED"
	CodeUnknown         Code = "UNKNOWN_ERROR"
)

// Category groups codes for coarse-grained handling and metrics labels.
type Category string

const (
	CategoryAuth        Category = "auth"
	CategoryRateLimit   Category = "rate_limit"
	CategoryCapacity    Category = "capacity"
	CategoryRoom        Category = "room"
	CategoryParticipant Category = "participant"
	CategorySignaling   Category = "signaling"
	CategoryRecording   Category = "recording"
	CategoryFileSharing Category = "file_sharing"
	CategoryNetwork     Category = "network"
	CategoryValidation  Category = "validation"
	CategoryGeneral     Category = "general"
)

var categoryByCode = map[Code]Category{
	CodeUnauthorized:     CategoryAuth,
	CodeInvalidToken:     CategoryAuth,
	CodeTokenExpired:     CategoryAuth,
	CodePermissionDenied: CategoryAuth,

	CodeRateLimitExceeded: CategoryRateLimit,
	CodeTooManyMessages:   CategoryRateLimit,
	CodeTooManyRequests:   CategoryRateLimit,

	CodeRoomFull:             CategoryCapacity,
	CodeMaxRoomsReached:      CategoryCapacity,
	CodeMaxParticipants:      CategoryCapacity,
	CodeStorageQuotaExceeded: CategoryCapacity,

	CodeRoomNotFound:      CategoryRoom,
	CodeRoomLocked:        CategoryRoom,
	CodeRoomClosed:        CategoryRoom,
	CodeRoomAlreadyExists: CategoryRoom,
	CodeInvalidRoomState:  CategoryRoom,

	CodeParticipantNotFound: CategoryParticipant,
	CodeParticipantBanned:   CategoryParticipant,
	CodeAlreadyInRoom:       CategoryParticipant,
	CodeNotInRoom:           CategoryParticipant,

	CodeInvalidSDP:          CategorySignaling,
	CodeInvalidICECandidate: CategorySignaling,
	CodeInvalidMessage:      CategorySignaling,
	CodeInvalidPayload:      CategorySignaling,
	CodeUnsupportedMedia:    CategorySignaling,

	CodeRecordingNotAllowed:    CategoryRecording,
	CodeRecordingAlreadyActive: CategoryRecording,

	CodeFileSharingNotAllowed: CategoryFileSharing,
	CodeFileTooLarge:          CategoryFileSharing,
	CodeMaliciousFileDetected: CategoryFileSharing,

	CodeServiceUnavailable: CategoryNetwork,
	CodeTimeout:            CategoryNetwork,

	CodeValidationFailed: CategoryValidation,
	CodeInvalidRoomID:    CategoryValidation,
	CodeInvalidUsername:  CategoryValidation,
	CodeInvalidSettings:  CategoryValidation,

	CodeInternalError:   CategoryGeneral,
	CodeOperationFailed: CategoryGeneral,
	CodeUnknown:         CategoryGeneral,
}

var statusByCode = map[Code]int{
	CodeUnauthorized:     http.StatusUnauthorized,
	CodeInvalidToken:     http.StatusUnauthorized,
	CodeTokenExpired:     http.StatusUnauthorized,
	CodePermissionDenied: http.StatusForbidden,

	CodeRateLimitExceeded: http.StatusTooManyRequests,
	CodeTooManyMessages:   http.StatusTooManyRequests,
	CodeTooManyRequests:   http.StatusTooManyRequests,

	CodeRoomFull:             http.StatusForbidden,
	CodeMaxRoomsReached:      http.StatusForbidden,
	CodeMaxParticipants:      http.StatusForbidden,
	CodeStorageQuotaExceeded: http.StatusInsufficientStorage,

	CodeRoomNotFound:      http.StatusNotFound,
	CodeRoomLocked:        http.StatusForbidden,
	CodeRoomClosed:        http.StatusGone,
	CodeRoomAlreadyExists: http.StatusConflict,
	CodeInvalidRoomState:  http.StatusBadRequest,

	CodeParticipantNotFound: http.StatusNotFound,
	CodeParticipantBanned:   http.StatusForbidden,
	CodeAlreadyInRoom:       http.StatusConflict,
	CodeNotInRoom:           http.StatusBadRequest,

	CodeInvalidSDP:          http.StatusBadRequest,
	CodeInvalidICECandidate: http.StatusBadRequest,
	CodeInvalidMessage:      http.StatusBadRequest,
	CodeInvalidPayload:      http.StatusBadRequest,
	CodeUnsupportedMedia:    http.StatusUnsupportedMediaType,

	CodeRecordingNotAllowed:    http.StatusForbidden,
	CodeRecordingAlreadyActive: http.StatusConflict,

	CodeFileSharingNotAllowed: http.StatusForbidden,
	CodeFileTooLarge:          http.StatusRequestEntityTooLarge,
	CodeMaliciousFileDetected: http.StatusUnsupportedMediaType,

	CodeServiceUnavailable: http.StatusServiceUnavailable,
	CodeTimeout:            http.StatusGatewayTimeout,

	CodeValidationFailed: http.StatusBadRequest,
	CodeInvalidRoomID:    http.StatusUnprocessableEntity,
	CodeInvalidUsername:  http.StatusUnprocessableEntity,
	CodeInvalidSettings:  http.StatusUnprocessableEntity,

	CodeInternalError:   http.StatusInternalServerError,
	CodeOperationFailed: http.StatusInternalServerError,
	CodeUnknown:         http.StatusInternalServerError,
}

// StatusCode returns the default transport status for a code. Unrecognized
// codes map to 500.
func StatusCode(code Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// CategoryOf returns the category a code belongs to.
func CategoryOf(code Code) Category {
	if cat, ok := categoryByCode[code]; ok {
		return cat
	}
	return CategoryGeneral
}
