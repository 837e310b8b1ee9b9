package util

import (
	"errors"
	"net/url"
	"strings"
)

var (
	ErrNoFilename = errors.New("cannot extract valid filename")
)

// FilenameFromURL returns the final path segment of url, unescaped.
func FilenameFromURL(url *url.URL) (string, error) {
	if url == nil {
		return "", ErrNoFilename
	}
	path := strings.Trim(url.Path, "/")
	if path == "" {
		return "", ErrNoFilename
	}
	filename := path[strings.LastIndex(path, "/")+1:]
	// Don't allow "filenames" that are just ".", "..", etc.
	if strings.ReplaceAll(filename, ".", "") == "" {
		return "", ErrNoFilename
	}
	if strings.ContainsAny(filename, `/\`) {
		return "", ErrNoFilename
	}
	return filename, nil
}

func FilenameFromURLString(s string) (string, error) {
	if parsedURL, err := url.Parse(s); err != nil {
		return "", err
	} else {
		return FilenameFromURL(parsedURL)
	}
}

// Hoster returns the host name (without port) of s, or "" if s is not an absolute URL.
func Hoster(s string) string {
	parsedURL, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return parsedURL.Hostname()
}
