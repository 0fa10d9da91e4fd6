package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"dyfetch/internal"
	"dyfetch/utils"
)

// qualityTokens is the fixed priority list used when no explicit
// no-watermark marker is present; first match wins
var qualityTokens = []string{"1080", "origin", "high"}

// SelectMediaURL picks the primary media URL from the normalized
// candidate list: an explicit no-watermark marker beats a quality
// token, which beats the first candidate. Returns "" for an empty list.
func SelectMediaURL(candidates []string) string {
	for _, candidate := range candidates {
		if strings.Contains(candidate, "watermark=0") {
			return candidate
		}
	}
	for _, token := range qualityTokens {
		for _, candidate := range candidates {
			if strings.Contains(candidate, token) {
				return candidate
			}
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

// AssetOptions selects which optional assets are saved per item
type AssetOptions struct {
	Cover  bool
	Music  bool
	Avatar bool
	JSON   bool
}

// ItemDownloader downloads every asset of one item: the required
// primary media plus the optional cover, music, avatar and metadata
// sidecar. Safe for concurrent Process calls from batch workers.
type ItemDownloader struct {
	store   internal.FileStore
	ledger  internal.Ledger
	retrier *utils.RetryHandler
	options AssetOptions

	// avatarMu guards avatarDone so only one batch worker fetches a
	// scope's shared avatar
	avatarMu   sync.Mutex
	avatarDone map[string]bool
}

// NewItemDownloader creates an item downloader
func NewItemDownloader(store internal.FileStore, ledger internal.Ledger, retrier *utils.RetryHandler, options AssetOptions) *ItemDownloader {
	return &ItemDownloader{
		store:      store,
		ledger:     ledger,
		retrier:    retrier,
		options:    options,
		avatarDone: make(map[string]bool),
	}
}

// Process downloads one item's assets and returns its outcome. A
// required-asset failure yields failed with no ledger entry; optional
// asset failures are logged and ignored.
func (d *ItemDownloader) Process(ctx context.Context, scope internal.Scope, item internal.Item) internal.Outcome {
	if len(item.MediaURLs) == 0 {
		err := internal.NewMissingMediaError(item.ID)
		internal.LogWarn("Item %s has no media reference: %v", item.ID, err)
		return internal.Outcome{Status: internal.OutcomeFailed, ItemID: item.ID, Detail: err.Error()}
	}

	author := item.AuthorName
	if scope.Author != "" {
		author = scope.Author
	}
	itemDir := d.store.SavePathFor(author, scope.Mode, item.Title, item.ID)
	baseName := filepath.Base(itemDir)

	fetched, err := d.downloadPrimary(ctx, item, itemDir, baseName)
	if err != nil {
		internal.LogWarn("Item %s primary media failed: %v", item.ID, err)
		return internal.Outcome{Status: internal.OutcomeFailed, ItemID: item.ID, Detail: err.Error()}
	}

	d.downloadOptional(ctx, item, itemDir, baseName)

	if d.ledger != nil {
		if err := d.ledger.Record(ctx, item.ID, scope.Key(), item.CreatedAt, item.Title); err != nil {
			internal.LogWarn("Ledger record for item %s failed: %v", item.ID, err)
		}
	}

	if !fetched {
		return internal.Outcome{Status: internal.OutcomeSkipped, ItemID: item.ID, Detail: "file already exists"}
	}
	return internal.Outcome{Status: internal.OutcomeSuccess, ItemID: item.ID}
}

// downloadPrimary fetches the required media. The returned bool is
// false when every required file already existed on disk.
func (d *ItemDownloader) downloadPrimary(ctx context.Context, item internal.Item, itemDir, baseName string) (bool, error) {
	switch item.MediaKind {
	case internal.MediaImageGallery:
		fetched := false
		for i, imageURL := range item.MediaURLs {
			imagePath := filepath.Join(itemDir, fmt.Sprintf("%s_%d%s", baseName, i+1, extensionOf(imageURL, ".jpg")))
			got, err := d.fetchAsset(ctx, imageURL, imagePath)
			if err != nil {
				return false, fmt.Errorf("image %d: %w", i+1, err)
			}
			fetched = fetched || got
		}
		return fetched, nil
	default:
		mediaURL := SelectMediaURL(item.MediaURLs)
		if mediaURL == "" {
			return false, internal.NewMissingMediaError(item.ID)
		}
		videoPath := filepath.Join(itemDir, baseName+".mp4")
		return d.fetchAsset(ctx, mediaURL, videoPath)
	}
}

// downloadOptional fetches the toggled-on secondary assets. Failures
// never fail the item.
func (d *ItemDownloader) downloadOptional(ctx context.Context, item internal.Item, itemDir, baseName string) {
	if d.options.Cover && item.CoverURL != "" {
		coverPath := filepath.Join(itemDir, baseName+"_cover.jpg")
		if _, err := d.fetchAsset(ctx, item.CoverURL, coverPath); err != nil {
			internal.LogWarn("Cover download for item %s failed: %v", item.ID, err)
		}
	}

	if d.options.Music && item.MusicURL != "" {
		musicPath := filepath.Join(itemDir, baseName+"_music.mp3")
		if _, err := d.fetchAsset(ctx, item.MusicURL, musicPath); err != nil {
			internal.LogWarn("Music download for item %s failed: %v", item.ID, err)
		}
	}

	// One avatar per scope directory, shared across the scope's items
	if d.options.Avatar && item.AvatarURL != "" {
		avatarPath := filepath.Join(filepath.Dir(itemDir), "avatar.jpg")
		if d.claimAvatar(avatarPath) {
			if _, err := d.fetchAsset(ctx, item.AvatarURL, avatarPath); err != nil {
				internal.LogWarn("Avatar download for item %s failed: %v", item.ID, err)
				d.releaseAvatar(avatarPath)
			}
		}
	}

	if d.options.JSON && item.Raw != nil {
		sidecarPath := filepath.Join(itemDir, baseName+"_data.json")
		data, err := json.MarshalIndent(item.Raw, "", "  ")
		if err == nil {
			err = d.store.WriteSidecar(sidecarPath, data)
		}
		if err != nil {
			internal.LogWarn("Metadata sidecar for item %s failed: %v", item.ID, err)
		}
	}
}

// claimAvatar marks an avatar path as handled. Returns false when
// another item of the scope already claimed it.
func (d *ItemDownloader) claimAvatar(avatarPath string) bool {
	d.avatarMu.Lock()
	defer d.avatarMu.Unlock()
	if d.avatarDone[avatarPath] {
		return false
	}
	d.avatarDone[avatarPath] = true
	return true
}

// releaseAvatar undoes a claim after a failed fetch so a later item
// can retry
func (d *ItemDownloader) releaseAvatar(avatarPath string) {
	d.avatarMu.Lock()
	defer d.avatarMu.Unlock()
	delete(d.avatarDone, avatarPath)
}

// fetchAsset streams one asset to disk through the retry handler. The
// fetch is skipped entirely when the destination already exists and is
// non-empty, independent of the ledger.
func (d *ItemDownloader) fetchAsset(ctx context.Context, assetURL, savePath string) (bool, error) {
	if d.store.FileExistsNonEmpty(savePath) {
		internal.LogDebug("Skipping existing file %s", savePath)
		return false, nil
	}

	err := d.retrier.Do(ctx, func() error {
		return d.store.StreamDownload(ctx, assetURL, savePath, nil)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// extensionOf extracts a file extension from a URL path, falling back
// to def when the URL carries none
func extensionOf(rawURL, def string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return def
	}
	if ext := path.Ext(parsed.Path); ext != "" && len(ext) <= 5 {
		return ext
	}
	return def
}
