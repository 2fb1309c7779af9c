package report

import (
	"io"

	"github.com/medhya/medhya/internal/platform/apiclient"
)

// MaxTitleLength bounds the report title shown to counselors.
const MaxTitleLength = 120

// AllowedExtensions lists the file types the platform accepts for reports.
var AllowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

type UploadRequest struct {
	Title    string
	Filename string
	File     io.Reader
}

// Report is the stored file as returned by the platform.
type Report = apiclient.StoredFile
