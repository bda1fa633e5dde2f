package models

type ImageKind string

const (
	// ImageEmbedded is a locally-encoded data: payload inlined in the markup.
	ImageEmbedded ImageKind = "embedded"
	// ImageHosted is any src that already points at a hosted resource.
	ImageHosted ImageKind = "hosted"
)

// ImageRef is one image located in a content document.
type ImageRef struct {
	Kind  ImageKind
	Src   string
	Index int // document order, zero based
}

// EditorProps is the configuration the host application hands the editor widget.
type EditorProps struct {
	Value      string `json:"value"`
	UserID     string `json:"userId"`
	EntryID    string `json:"entryId"`
	EntryTitle string `json:"entryTitle"`
	Tags       string `json:"tags"`
}

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notification is a user-facing alert raised by the pipeline.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}
