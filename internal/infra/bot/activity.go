package bot

import (
	"regexp"
	"strings"

	"voicegate/internal/domain"
)

// Activity is the platform's wire shape for one conversation event. Only the
// fields the gateway needs are mapped.
type Activity struct {
	Type         string        `json:"type"`
	ID           string        `json:"id,omitempty"`
	Text         string        `json:"text,omitempty"`
	ServiceURL   string        `json:"serviceUrl,omitempty"`
	ChannelID    string        `json:"channelId,omitempty"`
	Conversation *Conversation `json:"conversation,omitempty"`
	From         *Account      `json:"from,omitempty"`
	Recipient    *Account      `json:"recipient,omitempty"`
	ReplyToID    string        `json:"replyToId,omitempty"`
	Attachments  []Attachment  `json:"attachments,omitempty"`
	Entities     []Entity      `json:"entities,omitempty"`
}

type Conversation struct {
	ID string `json:"id"`
}

type Account struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type Attachment struct {
	ContentType string             `json:"contentType"`
	Name        string             `json:"name,omitempty"`
	ContentURL  string             `json:"contentUrl,omitempty"`
	Content     *AttachmentContent `json:"content,omitempty"`
}

type AttachmentContent struct {
	DownloadURL string `json:"downloadUrl,omitempty"`
	FileType    string `json:"fileType,omitempty"`
	Name        string `json:"name,omitempty"`
}

type Entity struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

var mentionTag = regexp.MustCompile(`<at>.*?</at>`)

// Message converts the activity into the domain message the pipeline
// consumes: mention markup stripped from the text, attachments normalized.
func (a *Activity) Message() domain.Message {
	text := a.Text
	for _, e := range a.Entities {
		if e.Type == "mention" && e.Text != "" {
			text = strings.ReplaceAll(text, e.Text, "")
		}
	}
	text = strings.TrimSpace(mentionTag.ReplaceAllString(text, ""))

	atts := make([]domain.Attachment, 0, len(a.Attachments))
	for _, att := range a.Attachments {
		d := domain.Attachment{
			ContentType: att.ContentType,
			Name:        att.Name,
			ContentURL:  att.ContentURL,
		}
		if att.Content != nil {
			d.Content = &domain.AttachmentContent{
				DownloadURL: att.Content.DownloadURL,
				FileType:    att.Content.FileType,
				Name:        att.Content.Name,
			}
		}
		atts = append(atts, d)
	}

	return domain.Message{Text: text, Attachments: atts}
}
