package dbmysql

import "strings"

// MediaKind classifies an attachment by its MIME type prefix.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
	MediaKindFile  MediaKind = "file"
)

// String returns the string representation
func (mk MediaKind) String() string {
	return string(mk)
}

// IsValid checks if the media kind is valid
func (mk MediaKind) IsValid() bool {
	switch mk {
	case MediaKindImage, MediaKindVideo, MediaKindAudio, MediaKindFile:
		return true
	}
	return false
}

// DetectMediaKind maps a MIME type to a media kind. Anything that is not
// image/video/audio lands on the generic file kind.
func DetectMediaKind(mimeType string) MediaKind {
	lowerMimeType := strings.ToLower(mimeType)
	if strings.HasPrefix(lowerMimeType, "image/") {
		return MediaKindImage
	}
	if strings.HasPrefix(lowerMimeType, "video/") {
		return MediaKindVideo
	}
	if strings.HasPrefix(lowerMimeType, "audio/") {
		return MediaKindAudio
	}
	return MediaKindFile
}
