package downloader

import (
	"context"
	"regexp"
	"strings"

	"dyfetch/internal"
)

// DouyinResolver implements the ContentResolver interface. It maps
// pasted URLs and share text to typed content descriptors, expanding
// short links through the API client.
type DouyinResolver struct {
	apiClient internal.APIClient
}

// urlPattern couples a content type with the regexes that recognize it.
// The first capture group is the content id.
type urlPattern struct {
	contentType internal.ContentType
	patterns    []*regexp.Regexp
}

var urlPatterns = []urlPattern{
	{
		contentType: internal.ContentVideo,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`https?://(?:www\.)?douyin\.com/video/(\d+)`),
			regexp.MustCompile(`https?://(?:www\.)?douyin\.com/note/(\d+)`),
			regexp.MustCompile(`https?://(?:www\.)?iesdouyin\.com/share/video/(\d+)`),
		},
	},
	{
		contentType: internal.ContentUser,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`https?://(?:www\.)?douyin\.com/user/\?.*sec_uid=([\w-]+)`),
			regexp.MustCompile(`https?://(?:www\.)?douyin\.com/user/([\w-]+)`),
			regexp.MustCompile(`https?://(?:www\.)?iesdouyin\.com/share/user/([\w-]+)`),
		},
	},
	{
		contentType: internal.ContentMix,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`https?://(?:www\.)?douyin\.com/collection/(\d+)`),
			regexp.MustCompile(`https?://(?:www\.)?douyin\.com/mix/detail/(\d+)`),
		},
	},
	{
		contentType: internal.ContentMusic,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`https?://(?:www\.)?douyin\.com/music/(\d+)`),
		},
	},
	{
		contentType: internal.ContentLive,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`https?://live\.douyin\.com/(\d+)`),
			regexp.MustCompile(`https?://(?:www\.)?douyin\.com/live/(\d+)`),
		},
	},
}

// Share blurbs wrap a modal id around the video id on some redirects
var modalIDPattern = regexp.MustCompile(`modal_id=(\d+)`)

// embeddedURLPattern pulls full URLs out of pasted share text
var embeddedURLPattern = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)

// shareCodePattern matches the "xyzABC123:/" short code inside a
// copied share blurb; real codes are at least 10 characters
var shareCodePattern = regexp.MustCompile(`([a-zA-Z0-9]+):/`)

// NewDouyinResolver creates a resolver that expands short links
// through the given API client
func NewDouyinResolver(apiClient internal.APIClient) *DouyinResolver {
	return &DouyinResolver{apiClient: apiClient}
}

// Resolve maps raw input (a URL or pasted share text) to a typed
// content descriptor
func (r *DouyinResolver) Resolve(ctx context.Context, rawInput string) (*internal.ContentDescriptor, error) {
	rawInput = strings.TrimSpace(rawInput)
	if rawInput == "" {
		return nil, internal.NewInvalidURLError(rawInput, "empty input")
	}

	// Direct match on the input itself
	if desc := classifyURL(rawInput); desc != nil {
		return desc, nil
	}

	// Short links need one redirect round-trip before classification
	if isShortLink(rawInput) {
		return r.resolveShort(ctx, rawInput)
	}

	// Share text: try any embedded URL, then the copied share code
	for _, embedded := range embeddedURLPattern.FindAllString(rawInput, -1) {
		if desc := classifyURL(embedded); desc != nil {
			return desc, nil
		}
		if isShortLink(embedded) {
			return r.resolveShort(ctx, embedded)
		}
	}

	if code := extractShareCode(rawInput); code != "" {
		return r.resolveShort(ctx, "https://v.douyin.com/"+code+"/")
	}

	return nil, internal.NewInvalidURLError(rawInput, "not a recognized douyin URL or share text")
}

// resolveShort expands a short link and classifies the final URL
func (r *DouyinResolver) resolveShort(ctx context.Context, shortURL string) (*internal.ContentDescriptor, error) {
	finalURL, err := r.apiClient.ResolveShortLink(ctx, shortURL)
	if err != nil {
		return nil, err
	}

	if desc := classifyURL(finalURL); desc != nil {
		desc.RawURL = shortURL
		return desc, nil
	}

	// Some share redirects land on a discover page carrying the video
	// id as a modal parameter
	if matches := modalIDPattern.FindStringSubmatch(finalURL); len(matches) > 1 {
		return &internal.ContentDescriptor{
			Type:   internal.ContentVideo,
			ID:     matches[1],
			RawURL: shortURL,
		}, nil
	}

	return nil, internal.NewInvalidURLError(shortURL, "short link resolved to an unrecognized URL")
}

// classifyURL matches a URL against the known patterns, returning nil
// when nothing matches
func classifyURL(rawURL string) *internal.ContentDescriptor {
	for _, group := range urlPatterns {
		for _, pattern := range group.patterns {
			if matches := pattern.FindStringSubmatch(rawURL); len(matches) > 1 {
				return &internal.ContentDescriptor{
					Type:   group.contentType,
					ID:     matches[1],
					RawURL: rawURL,
				}
			}
		}
	}
	return nil
}

// isShortLink reports whether the input is a bare platform short link.
// Share text wrapping a short link goes through embedded-URL extraction
// instead.
func isShortLink(rawURL string) bool {
	if strings.ContainsAny(rawURL, " \t\n") {
		return false
	}
	return strings.Contains(rawURL, "v.douyin.com") || strings.Contains(rawURL, "dyv.im")
}

// extractShareCode pulls the short code out of a copied share blurb
func extractShareCode(text string) string {
	if matches := shareCodePattern.FindStringSubmatch(text); len(matches) > 1 {
		if code := matches[1]; len(code) >= 10 {
			return code
		}
	}
	return ""
}
