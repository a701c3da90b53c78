package common

import "unicode/utf8"

const (
	maxBodyRunes    = 10000
	maxEmojiRunes   = 32
	maxSubjectRunes = 255
)

// ValidateMessageBody bounds the body against the storage column. Empty
// bodies are legal: attachment-only and fragment-only messages carry no
// text.
func ValidateMessageBody(body string) error {
	if utf8.RuneCountInString(body) > maxBodyRunes {
		return ErrInvalidArgument.WithDetailf("message body exceeds %d characters", maxBodyRunes)
	}
	return nil
}

func ValidateEmoji(emoji string) error {
	if emoji == "" {
		return ErrInvalidArgument.WithDetail("emoji is required")
	}
	if utf8.RuneCountInString(emoji) > maxEmojiRunes {
		return ErrInvalidArgument.WithDetail("emoji too long")
	}
	return nil
}

func ValidateSubject(subject string) error {
	if utf8.RuneCountInString(subject) > maxSubjectRunes {
		return ErrInvalidArgument.WithDetailf("subject exceeds %d characters", maxSubjectRunes)
	}
	return nil
}
