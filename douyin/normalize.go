package douyin

import (
	"strings"
	"time"

	"dyfetch/internal"
)

// RawItem mirrors the subset of the platform's aweme payload the
// downloader consumes. All probing of the loosely-structured upstream
// JSON happens here, in one place.
type RawItem struct {
	AwemeID    string      `json:"aweme_id"`
	Desc       string      `json:"desc"`
	CreateTime int64       `json:"create_time"`
	AwemeType  int         `json:"aweme_type"`
	Author     RawAuthor   `json:"author"`
	Video      RawVideo    `json:"video"`
	Images     []RawImage  `json:"images"`
	Music      RawMusic    `json:"music"`
	MixInfo    *RawMixInfo `json:"mix_info"`
}

// RawAuthor is the author block of an aweme payload
type RawAuthor struct {
	UID          string  `json:"uid"`
	SecUID       string  `json:"sec_uid"`
	Nickname     string  `json:"nickname"`
	AvatarLarger RawURLs `json:"avatar_larger"`
}

// RawVideo holds the video addresses of an aweme payload
type RawVideo struct {
	PlayAddr     RawURLs `json:"play_addr"`
	DownloadAddr RawURLs `json:"download_addr"`
	Cover        RawURLs `json:"cover"`
}

// RawImage is one gallery image entry
type RawImage struct {
	URLList []string `json:"url_list"`
}

// RawMusic is the music block of an aweme payload
type RawMusic struct {
	ID      int64   `json:"id"`
	Title   string  `json:"title"`
	PlayURL RawURLs `json:"play_url"`
}

// RawMixInfo identifies the mix an aweme belongs to
type RawMixInfo struct {
	MixID   string `json:"mix_id"`
	MixName string `json:"mix_name"`
}

// RawURLs is the platform's recurring {uri, url_list} shape
type RawURLs struct {
	URI     string   `json:"uri"`
	URLList []string `json:"url_list"`
}

// First returns the first non-empty candidate URL, or ""
func (u RawURLs) First() string {
	for _, candidate := range u.URLList {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// Normalize converts a raw aweme payload into the downloader's Item.
// rawJSON is the undecoded payload kept for the metadata sidecar.
func Normalize(raw *RawItem, rawJSON map[string]interface{}) internal.Item {
	// AuthorID carries sec_uid: it is what the listing endpoints key on,
	// so single-item and whole-profile downloads share a dedup namespace
	item := internal.Item{
		ID:         raw.AwemeID,
		Title:      raw.Desc,
		AuthorID:   raw.Author.SecUID,
		AuthorName: raw.Author.Nickname,
		CoverURL:   raw.Video.Cover.First(),
		MusicURL:   raw.Music.PlayURL.First(),
		AvatarURL:  raw.Author.AvatarLarger.First(),
		Raw:        rawJSON,
	}

	if raw.CreateTime > 0 {
		item.CreatedAt = time.Unix(raw.CreateTime, 0)
	}

	if len(raw.Images) > 0 {
		item.MediaKind = internal.MediaImageGallery
		for _, image := range raw.Images {
			if url := image.First(); url != "" {
				item.MediaURLs = append(item.MediaURLs, url)
			}
		}
		return item
	}

	item.MediaKind = internal.MediaSingleVideo
	for _, candidate := range raw.Video.PlayAddr.URLList {
		if candidate == "" {
			continue
		}
		item.MediaURLs = append(item.MediaURLs, RewriteWatermarkURL(candidate))
	}
	return item
}

// RewriteWatermarkURL maps the watermarked playwm endpoint to its
// non-watermarked play counterpart. Other URLs pass through unchanged.
func RewriteWatermarkURL(rawURL string) string {
	if strings.Contains(rawURL, "/playwm/") {
		return strings.Replace(rawURL, "/playwm/", "/play/", 1)
	}
	return rawURL
}

// First returns the first non-empty image candidate URL, or ""
func (i RawImage) First() string {
	for _, candidate := range i.URLList {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}
