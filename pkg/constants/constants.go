package constants

import "time"

// Message length limits for different platforms
const (
	// MaxDiscordMessageLength is Discord's message character limit
	MaxDiscordMessageLength = 2000
	// MaxTelegramMessageLength is Telegram's message character limit
	MaxTelegramMessageLength = 4096
	// MaxEchoPreviewRunes is how much of an echoed message is quoted back
	MaxEchoPreviewRunes = 1000
)

// Discord component layout limits
const (
	// MaxDiscordActionRows is the number of action rows a message may carry
	MaxDiscordActionRows = 5
	// MaxDiscordButtonsPerRow is the number of buttons an action row may carry
	MaxDiscordButtonsPerRow = 5
)

// Timeouts and delays
const (
	// DefaultPollTimeout is the timeout for long polling operations
	DefaultPollTimeout = 60 * time.Second
	// DefaultDispatchTimeout is the wall-clock budget of one handler invocation
	DefaultDispatchTimeout = 10 * time.Second
	// DefaultSendTimeout bounds a single send attempt to the platform
	DefaultSendTimeout = 15 * time.Second
	// DefaultRetryDelay is the delay before the first send retry
	DefaultRetryDelay = 500 * time.Millisecond
	// DefaultMaxRetryDelay caps the exponential backoff between send retries
	DefaultMaxRetryDelay = 5 * time.Second
	// DefaultConversationIdle is how long a conversation worker waits before exiting
	DefaultConversationIdle = 2 * time.Minute
	// FileLookupTimeout bounds metadata lookups for attachments
	FileLookupTimeout = 5 * time.Second
)

// Retry configuration
const (
	// DefaultSendAttempts is the number of attempts made to deliver a reply
	DefaultSendAttempts = 3
	// MaxSendAttempts is the upper bound accepted from configuration
	MaxSendAttempts = 10
)

// Message buffer sizes
const (
	// ConversationQueueSize is the buffer size of a conversation's event queue
	ConversationQueueSize = 32
)

// Token masking
const (
	// MinSecretLengthForMasking is the minimum secret length to apply partial masking
	MinSecretLengthForMasking = 10
	// SecretMaskPrefixLength is the length of prefix to show before masking
	SecretMaskPrefixLength = 4
	// SecretMaskSuffixLength is the length of suffix to show after masking
	SecretMaskSuffixLength = 4
)

// Logging defaults
const (
	// DefaultLogMaxSize is the default maximum log file size in MB
	DefaultLogMaxSize = 100
	// DefaultLogMaxBackups is the default number of rotated files kept
	DefaultLogMaxBackups = 5
	// DefaultLogMaxAge is the default maximum number of days to retain old logs
	DefaultLogMaxAge = 30
)
