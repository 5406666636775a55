package models

// UploadResult адрес загруженного содержимого.
type UploadResult struct {
	Hash string `json:"rootHash"`
	Size int64  `json:"size"`
}

// FileInfo сведения о сохранённом содержимом.
type FileInfo struct {
	Hash      string `json:"rootHash"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Finalized bool   `json:"finalized"`
}
