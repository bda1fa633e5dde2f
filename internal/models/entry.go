package models

// Entry is the persisted unit for one saved document.
type Entry struct {
	ID         string
	Content    string
	PlainText  string
	Title      string
	UserID     string
	DocumentID string
	FirstImage string
	TagIDs     []string
}

// ImageRecord links a hosted image URL to its parent entry.
type ImageRecord struct {
	ID       string
	EntryID  string
	URL      string
	Position int
}

// Tag names are compared exactly, without case folding.
type Tag struct {
	ID   string
	Name string
}
