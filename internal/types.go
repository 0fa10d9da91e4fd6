package internal

import (
	"net/http"
	"time"
)

// ContentType classifies what a resolved douyin URL points at
type ContentType int

const (
	ContentUnknown ContentType = iota
	ContentVideo
	ContentGallery
	ContentUser
	ContentMix
	ContentMusic
	ContentLive
)

// String returns the string representation of ContentType
func (ct ContentType) String() string {
	switch ct {
	case ContentVideo:
		return "video"
	case ContentGallery:
		return "gallery"
	case ContentUser:
		return "user"
	case ContentMix:
		return "mix"
	case ContentMusic:
		return "music"
	case ContentLive:
		return "live"
	default:
		return "unknown"
	}
}

// ContentDescriptor is the typed result of resolving an input URL.
// Immutable once created by the resolver.
type ContentDescriptor struct {
	Type   ContentType `json:"type"`
	ID     string      `json:"id"`
	RawURL string      `json:"raw_url"`
}

// MediaKind distinguishes the primary media of an item
type MediaKind int

const (
	MediaSingleVideo MediaKind = iota
	MediaImageGallery
)

// AssetKind classifies a downloadable file belonging to an item
type AssetKind int

const (
	AssetVideo AssetKind = iota
	AssetCover
	AssetAudio
	AssetImage
	AssetAvatar
)

// String returns the string representation of AssetKind
func (ak AssetKind) String() string {
	switch ak {
	case AssetVideo:
		return "video"
	case AssetCover:
		return "cover"
	case AssetAudio:
		return "audio"
	case AssetImage:
		return "image"
	case AssetAvatar:
		return "avatar"
	default:
		return "unknown"
	}
}

// AssetRef points at one downloadable file derived from an item
type AssetRef struct {
	URL            string    `json:"url"`
	Kind           AssetKind `json:"kind"`
	TargetFilename string    `json:"target_filename"`
}

// Item is one post/media unit returned by the listing API, already
// normalized from the raw payload. Never mutated after creation.
type Item struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
	MediaKind  MediaKind `json:"media_kind"`

	// Candidate URLs for the primary media. For videos these are the
	// play_addr url_list entries in upstream order; for galleries one
	// entry per image.
	MediaURLs []string `json:"media_urls"`

	CoverURL  string `json:"cover_url,omitempty"`
	MusicURL  string `json:"music_url,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`

	// Raw upstream payload, kept for the optional JSON sidecar.
	Raw map[string]interface{} `json:"-"`
}

// Page is one page of a paginated listing response
type Page struct {
	Items      []Item
	HasMore    bool
	NextCursor string
}

// OutcomeStatus tags the per-item result of a batch download
type OutcomeStatus int

const (
	OutcomeSuccess OutcomeStatus = iota
	OutcomeFailed
	OutcomeSkipped
)

// String returns the string representation of OutcomeStatus
func (os OutcomeStatus) String() string {
	switch os {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome is one item's result within a batch
type Outcome struct {
	Status OutcomeStatus
	ItemID string
	Detail string
}

// DownloadResult aggregates per-item outcomes for a scope or session.
// total == success + failed + skipped after each item is finalized.
type DownloadResult struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Add records one outcome into the result
func (r *DownloadResult) Add(status OutcomeStatus) {
	r.Total++
	switch status {
	case OutcomeSuccess:
		r.Success++
	case OutcomeFailed:
		r.Failed++
	case OutcomeSkipped:
		r.Skipped++
	}
}

// Merge additively folds another result into this one
func (r *DownloadResult) Merge(other DownloadResult) {
	r.Total += other.Total
	r.Success += other.Success
	r.Failed += other.Failed
	r.Skipped += other.Skipped
}

// Scope is one logical download unit: a user's posts, a user's likes,
// one mix, or one music page. Each scope has its own pagination loop,
// filter window and dedup namespace.
type Scope struct {
	Mode      string // post, like, mix, music
	UserSecID string // for post/like modes
	MixID     string // for mix mode
	MusicID   string // for music mode
	Author    string // directory name component, filled after entity lookup
}

// Key returns the ledger dedup namespace for this scope
func (s Scope) Key() string {
	switch s.Mode {
	case "mix":
		return "mix:" + s.MixID
	case "music":
		return "music:" + s.MusicID
	default:
		return s.Mode + ":" + s.UserSecID
	}
}

// AuthContext carries the credential set loaded from a cookie file.
// The core treats it as an opaque bag forwarded to the API client.
type AuthContext struct {
	Cookies   map[string]*http.Cookie
	MsToken   string
	Ttwid     string
	ExpiresAt time.Time
	UserAgent string
}

// CookieHeader renders the stored cookies as a Cookie header value.
// Names listed in exclude are left out.
func (a *AuthContext) CookieHeader(exclude ...string) string {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	var b []byte
	for name, c := range a.Cookies {
		if skip[name] {
			continue
		}
		if len(b) > 0 {
			b = append(b, "; "...)
		}
		b = append(b, name...)
		b = append(b, '=')
		b = append(b, c.Value...)
	}
	return string(b)
}
