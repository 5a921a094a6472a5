package domain

type SourceKind string

const (
	SourcePlatformFileCard SourceKind = "platform_file_card"
	SourceDirectAudio      SourceKind = "direct_audio"
	SourceFilenameFallback SourceKind = "filename_fallback"
)

// AudioDescriptor is the classifier's normalized summary of a recognized
// audio attachment. Immutable once created; scoped to a single message turn.
type AudioDescriptor struct {
	Name         string
	FileType     string
	ContentType  string
	SourceKind   SourceKind
	RetrievalURL string
}
