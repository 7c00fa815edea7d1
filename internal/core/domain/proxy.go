package domain

import "encoding/json"

// UpstreamResponse is a GHL API response passed back to the frontend as-is.
type UpstreamResponse struct {
	StatusCode  int
	ContentType string
	Body        json.RawMessage
}

// OK reports whether the upstream call succeeded.
func (r *UpstreamResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// MediaUpload is a file forwarded to the GHL media library.
type MediaUpload struct {
	FileName    string
	ContentType string
	Content     []byte
	Name        string
	ParentID    string
}
