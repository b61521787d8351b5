package fetcher

import (
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var filenamePattern = regexp.MustCompile(`filename="([^"]*)"`)

// FileName derives the local file name for a download.
//
// The stem is the last segment of the URL path. A file name announced in
// Content-Disposition decides the extension (from its first dot); without
// one the Content-Type subtype is used. The extension is not appended twice.
func FileName(u *url.URL, h http.Header, fallback string) string {
	stem := sanitize(path.Base(u.Path))
	if stem == "" {
		stem = sanitize(fallback)
	}
	if stem == "" {
		stem = "download"
	}

	var ext string
	if name, ok := dispositionFilename(h); ok {
		ext = extensionOf(name)
	} else if h != nil {
		ext = extensionFromContentType(h.Get("Content-Type"))
	}

	if ext != "" && !strings.HasSuffix(strings.ToLower(stem), strings.ToLower(ext)) {
		stem += ext
	}
	return stem
}

func dispositionFilename(h http.Header) (string, bool) {
	if h == nil {
		return "", false
	}
	for _, v := range h.Values("Content-Disposition") {
		if _, params, err := mime.ParseMediaType(v); err == nil {
			if name := params["filename"]; name != "" {
				return sanitize(name), true
			}
		}
		if m := filenamePattern.FindStringSubmatch(v); m != nil && m[1] != "" {
			return sanitize(m[1]), true
		}
	}
	return "", false
}

func extensionOf(name string) string {
	if i := strings.Index(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

func extensionFromContentType(ct string) string {
	ct = strings.TrimSpace(ct)
	i := strings.Index(ct, "/")
	if i < 0 {
		return ""
	}
	sub := ct[i+1:]
	if j := strings.Index(sub, ";"); j >= 0 {
		sub = sub[:j]
	}
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return ""
	}
	return "." + sub
}

// sanitize keeps only a base name so server or URL input cannot escape
// the target folder.
func sanitize(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = filepath.Base(path.Base(name))
	switch name {
	case ".", "..", "/", "":
		return ""
	}
	return name
}
