// Package extract finds candidate file links in free text and HTML.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/vincent-petithory/dataurl"
	"mvdan.cc/xurls/v2"

	"github.com/alanbriolat/fig"
	"github.com/alanbriolat/fig/generic"
)

var (
	srcAttrRe     = regexp.MustCompile(`(?i)\bsrc="([^"]+)"`)
	bareURLRe     = generic.Unwrap(xurls.StrictMatchingScheme(`https?://`))
	bareInlineRe  = regexp.MustCompile(`data:image/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/]+=*`)
	inlineImageRe = regexp.MustCompile(`^data:image/([a-zA-Z0-9.+-]+);base64,(.+)$`)
)

// ExtractCandidates returns src="..." attribute values, then bare http(s) URLs, then bare inline images, each in the
// order they appear in text. The same link may appear more than once.
func ExtractCandidates(text string) []string {
	var res []string
	for _, m := range srcAttrRe.FindAllStringSubmatch(text, -1) {
		res = append(res, m[1])
	}
	res = append(res, bareURLRe.FindAllString(text, -1)...)
	for _, m := range bareInlineRe.FindAllStringIndex(text, -1) {
		// Already found as an attribute value
		if m[0] > 0 && text[m[0]-1] == '"' {
			continue
		}
		res = append(res, text[m[0]:m[1]])
	}
	return res
}

// Normalize truncates u at the first '?' or '&'.
func Normalize(u string) string {
	if i := strings.IndexAny(u, "?&"); i >= 0 {
		return u[:i]
	}
	return u
}

// Inline describes whether an item is inline base64 image data.
type Inline struct {
	IsBase64Image bool
	// Subtype is the image media subtype, e.g. "png".
	Subtype string
}

func ClassifyInline(item string) Inline {
	m := inlineImageRe.FindStringSubmatch(item)
	if m == nil {
		return Inline{}
	}
	return Inline{IsBase64Image: true, Subtype: strings.ToLower(m[1])}
}

// DecodeInline decodes a data:image/<subtype>;base64,<payload> item. Anything else, or a payload that isn't valid
// base64, is an ErrInvalidPayload.
func DecodeInline(item string) (subtype string, data []byte, err error) {
	inline := ClassifyInline(item)
	if !inline.IsBase64Image {
		return "", nil, fig.WithKind(fig.ErrInvalidPayload, fmt.Errorf("invalid base64 image data"))
	}
	decoded, err := dataurl.DecodeString(item)
	if err != nil {
		return "", nil, fig.WithKind(fig.ErrInvalidPayload, fmt.Errorf("invalid base64 image data: %w", err))
	}
	return inline.Subtype, decoded.Data, nil
}

// Resolve makes relative candidates absolute against base, and drops anything that is neither an http(s) URL nor
// inline image data.
func Resolve(base *url.URL, candidates []string) []string {
	res := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if ClassifyInline(c).IsBase64Image {
			res = append(res, c)
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(c))
		if err != nil {
			continue
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if ref.Scheme == "http" || ref.Scheme == "https" {
			res = append(res, ref.String())
		}
	}
	return res
}

// Links extracts, normalizes and deduplicates the links in text.
func Links(text string) []string {
	return ResolvedLinks(nil, text)
}

// ResolvedLinks is Links for a page fetched from base, so relative src values become absolute.
func ResolvedLinks(base *url.URL, text string) []string {
	candidates := Resolve(base, ExtractCandidates(text))
	for i, c := range candidates {
		candidates[i] = Normalize(c)
	}
	return generic.Unique(candidates)
}
