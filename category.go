package fig

import "regexp"

// Category is a coarse grouping of files by what they probably contain, used to pick an icon.
type Category string

const (
	CategoryImage      Category = "image"
	CategoryDocument   Category = "document"
	CategoryMultimedia Category = "multimedia"
	CategoryArchive    Category = "archive"
	CategoryFile       Category = "file"
)

var (
	imageURLRe      = regexp.MustCompile(`(?i)\.(gif|jpe?g|tiff?|png|webp|bmp)$`)
	inlineImageRe   = regexp.MustCompile(`(?i)^data:image/[a-z0-9.+-]+;base64,`)
	documentURLRe   = regexp.MustCompile(`(?i)\.(docx?|xlsx?|pptx?|pdf)$`)
	multimediaURLRe = regexp.MustCompile(`(?i)\.(mp4|webm|ogg|mp3|wav)$`)
	archiveURLRe    = regexp.MustCompile(`(?i)\.(zip|rar|7z|tar|gz|bz2)$`)
)

// CategoryOf classifies a link by its extension, or as an image if it is inline image data.
func CategoryOf(url string) Category {
	switch {
	case imageURLRe.MatchString(url), inlineImageRe.MatchString(url):
		return CategoryImage
	case documentURLRe.MatchString(url):
		return CategoryDocument
	case multimediaURLRe.MatchString(url):
		return CategoryMultimedia
	case archiveURLRe.MatchString(url):
		return CategoryArchive
	default:
		return CategoryFile
	}
}

// Category of the link, see CategoryOf.
func (l FileLink) Category() Category {
	return CategoryOf(l.URL)
}
