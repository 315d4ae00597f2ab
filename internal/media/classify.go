package media

import (
	"path/filepath"
	"strings"
)

// Kind is the coarse media category of an uploaded file.
type Kind string

const (
	// KindImage is a still image.
	KindImage Kind = "image"
	// KindVideo is a video container.
	KindVideo Kind = "video"
	// KindUnknown means neither the file name nor the content type matched.
	KindUnknown Kind = "unknown"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".wmv":  {},
	".flv":  {},
	".webm": {},
	".mkv":  {},
}

var videoContentTypes = []string{
	"video/mp4",
	"video/avi",
	"video/quicktime",
	"video/x-ms-wmv",
	"video/x-flv",
	"video/webm",
	"video/x-matroska",
}

// Classify decides whether an upload is an image or a video.
// The file name suffix is checked first; the declared content type is only
// consulted when the suffix is not recognized.
func Classify(fileName, contentType string) Kind {
	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := imageExtensions[ext]; ok {
		return KindImage
	}
	if _, ok := videoExtensions[ext]; ok {
		return KindVideo
	}

	ct := strings.ToLower(contentType)
	for _, v := range videoContentTypes {
		if strings.Contains(ct, v) {
			return KindVideo
		}
	}

	return KindUnknown
}
