package domain

import (
	"time"
)

// Upload is a file received from the admin widget. It lives for one request.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Result describes a stored original and its thumbnail.
type Result struct {
	Name        string    `json:"name"`
	ThumbName   string    `json:"thumb_name"`
	URL         string    `json:"url"`
	ThumbURL    string    `json:"thumb_url"`
	ThumbWidth  int       `json:"thumb_width"`
	ThumbHeight int       `json:"thumb_height"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Fragment    string    `json:"fragment"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
