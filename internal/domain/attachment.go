package domain

// FileCardContentType is the platform's "file download info" card type.
// Attachments uploaded through the platform's file picker arrive with this
// content type and carry the real download URL inside the nested content.
const FileCardContentType = "application/vnd.microsoft.teams.file.download.info"

// Attachment is one entry of an inbound message's attachment list, as the
// routing layer hands it to us. Fields mirror the platform wire shape; any of
// them may be empty.
type Attachment struct {
	ContentType string
	Name        string
	ContentURL  string
	Content     *AttachmentContent
}

// AttachmentContent is the nested content block of a file-card attachment.
type AttachmentContent struct {
	DownloadURL string
	FileType    string
	Name        string
}

// Message is one inbound chat turn after the routing layer has resolved
// mentions: optional plain text plus the ordered attachment list.
type Message struct {
	Text        string
	Attachments []Attachment
}
