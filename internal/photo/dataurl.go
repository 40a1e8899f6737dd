package photo

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)
	dataURLMime     = regexp.MustCompile(`:(.*?);`)
)

// EncodeDataURL wraps raw bytes as a base64 data-URL.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a data-URL into raw bytes and MIME type. The MIME
// type defaults to image/jpeg when the header does not declare one.
func DecodeDataURL(s string) ([]byte, string, error) {
	idx := strings.Index(s, ",")
	if idx < 0 {
		return nil, "", fmt.Errorf("not a data-URL")
	}

	mimeType := "image/jpeg"
	if m := dataURLMime.FindStringSubmatch(s[:idx]); len(m) == 2 && m[1] != "" {
		mimeType = m[1]
	}

	data, err := base64.StdEncoding.DecodeString(s[idx+1:])
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, mimeType, nil
}

// SanitizeFilename replaces every character outside [A-Za-z0-9.-] with "_".
func SanitizeFilename(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// ObjectKey builds the storage key for one photo:
// {parent}/{category}/{unixMillis}_{sanitizedName}.jpg
func ObjectKey(parent, category, name string, ts time.Time) string {
	return fmt.Sprintf("%s/%s/%d_%s.jpg", parent, category, ts.UnixMilli(), SanitizeFilename(name))
}
