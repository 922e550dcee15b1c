package fields

import (
	"mime"
	"path/filepath"
	"strings"
)

// BaseType classifies a document for the base type field.
type BaseType string

const (
	BaseTypeDocument     BaseType = "document"
	BaseTypeSpreadsheet  BaseType = "spreadsheet"
	BaseTypePresentation BaseType = "presentation"
	BaseTypeEmail        BaseType = "email"
	BaseTypeArchive      BaseType = "archive"
	BaseTypeImage        BaseType = "image"
	BaseTypeVideo        BaseType = "video"
	BaseTypeAudio        BaseType = "audio"
	BaseTypeOther        BaseType = "other"
)

var baseTypeExts = map[string]BaseType{
	".pdf": BaseTypeDocument, ".doc": BaseTypeDocument, ".docx": BaseTypeDocument,
	".odt": BaseTypeDocument, ".rtf": BaseTypeDocument, ".txt": BaseTypeDocument,
	".html": BaseTypeDocument, ".htm": BaseTypeDocument, ".xml": BaseTypeDocument,

	".xls": BaseTypeSpreadsheet, ".xlsx": BaseTypeSpreadsheet, ".ods": BaseTypeSpreadsheet,
	".csv": BaseTypeSpreadsheet,

	".ppt": BaseTypePresentation, ".pptx": BaseTypePresentation, ".odp": BaseTypePresentation,

	".eml": BaseTypeEmail, ".msg": BaseTypeEmail, ".mbox": BaseTypeEmail, ".pst": BaseTypeEmail,

	".zip": BaseTypeArchive, ".tar": BaseTypeArchive, ".gz": BaseTypeArchive,
	".tgz": BaseTypeArchive, ".7z": BaseTypeArchive, ".rar": BaseTypeArchive,

	".jpg": BaseTypeImage, ".jpeg": BaseTypeImage, ".png": BaseTypeImage, ".gif": BaseTypeImage,
	".bmp": BaseTypeImage, ".webp": BaseTypeImage, ".tiff": BaseTypeImage, ".tif": BaseTypeImage,
	".heic": BaseTypeImage,

	".mp4": BaseTypeVideo, ".mov": BaseTypeVideo, ".avi": BaseTypeVideo, ".mkv": BaseTypeVideo,
	".wmv": BaseTypeVideo, ".webm": BaseTypeVideo,

	".mp3": BaseTypeAudio, ".wav": BaseTypeAudio, ".flac": BaseTypeAudio, ".m4a": BaseTypeAudio,
	".ogg": BaseTypeAudio,
}

// DetectBaseType returns the BaseType for path based on its extension.
func DetectBaseType(path string) BaseType {
	if t, ok := baseTypeExts[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return BaseTypeOther
}

// ContentType returns the MIME content type for path based on its extension.
// Returns "application/octet-stream" for unknown types.
func ContentType(path string) string {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
