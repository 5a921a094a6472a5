package application

import (
	"path/filepath"
	"strings"

	"voicegate/internal/domain"
)

var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".ogg":  true,
	".webm": true,
	".aac":  true,
	".flac": true,
}

// Classify inspects one attachment and decides whether it represents
// retrievable audio. Rules are evaluated in priority order, first match wins:
// platform file card, direct audio content type, filename fallback. Pure
// function; no side effects.
func Classify(att domain.Attachment) (domain.AudioDescriptor, bool) {
	name := displayName(att)

	if att.ContentType == domain.FileCardContentType && hasAudioExtension(name) {
		url := att.ContentURL
		if att.Content != nil && att.Content.DownloadURL != "" {
			url = att.Content.DownloadURL
		}
		if url != "" {
			return domain.AudioDescriptor{
				Name:         name,
				FileType:     fileType(att, name),
				ContentType:  declaredContentType(att),
				SourceKind:   domain.SourcePlatformFileCard,
				RetrievalURL: url,
			}, true
		}
	}

	if strings.HasPrefix(att.ContentType, "audio/") && att.ContentURL != "" {
		if name == "" {
			name = "audio." + mimeSubtype(att.ContentType)
		}
		return domain.AudioDescriptor{
			Name:         name,
			FileType:     extensionOf(name),
			ContentType:  att.ContentType,
			SourceKind:   domain.SourceDirectAudio,
			RetrievalURL: att.ContentURL,
		}, true
	}

	if hasAudioExtension(name) {
		url := att.ContentURL
		if url == "" && att.Content != nil {
			url = att.Content.DownloadURL
		}
		if url != "" {
			return domain.AudioDescriptor{
				Name:         name,
				FileType:     fileType(att, name),
				ContentType:  declaredContentType(att),
				SourceKind:   domain.SourceFilenameFallback,
				RetrievalURL: url,
			}, true
		}
	}

	return domain.AudioDescriptor{}, false
}

// FirstAudio returns the descriptor of the first attachment classified as
// audio. Remaining attachments are ignored for the turn.
func FirstAudio(atts []domain.Attachment) (domain.AudioDescriptor, bool) {
	for _, att := range atts {
		if desc, ok := Classify(att); ok {
			return desc, true
		}
	}
	return domain.AudioDescriptor{}, false
}

func displayName(att domain.Attachment) string {
	if att.Name != "" {
		return att.Name
	}
	if att.Content != nil {
		return att.Content.Name
	}
	return ""
}

func hasAudioExtension(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

func fileType(att domain.Attachment, name string) string {
	if att.Content != nil && att.Content.FileType != "" {
		return strings.ToLower(att.Content.FileType)
	}
	return extensionOf(name)
}

func extensionOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func declaredContentType(att domain.Attachment) string {
	if att.ContentType == "" {
		return "unknown"
	}
	return att.ContentType
}

func mimeSubtype(contentType string) string {
	subtype := strings.TrimPrefix(contentType, "audio/")
	if i := strings.IndexByte(subtype, ';'); i >= 0 {
		subtype = subtype[:i]
	}
	return strings.TrimSpace(subtype)
}
