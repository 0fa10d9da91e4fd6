package downloader

import (
	"context"
	"time"

	"dyfetch/internal"
	"dyfetch/utils"
)

// Engine is the download orchestrator. For each resolved content
// descriptor it drives pagination through the API client, applies the
// time/count filters, decides skip-vs-download via the ledger, and
// dispatches per-item asset downloads through the queue manager.
type Engine struct {
	config    *internal.Config
	apiClient internal.APIClient
	ledger    internal.Ledger
	store     internal.FileStore
	limiter   internal.RateLimiter
	retrier   *utils.RetryHandler
	queue     *utils.QueueManager
	items     *ItemDownloader
}

// NewEngine wires an orchestrator from its collaborators. The retry
// handler, queue manager and item downloader are derived from config.
func NewEngine(config *internal.Config, apiClient internal.APIClient, ledger internal.Ledger, store internal.FileStore, limiter internal.RateLimiter) (*Engine, error) {
	retrier, err := utils.NewRetryHandler(config.RetryTimes)
	if err != nil {
		return nil, err
	}

	options := AssetOptions{
		Cover:  config.Cover,
		Music:  config.Music,
		Avatar: config.Avatar,
		JSON:   config.JSON,
	}

	return &Engine{
		config:    config,
		apiClient: apiClient,
		ledger:    ledger,
		store:     store,
		limiter:   limiter,
		retrier:   retrier,
		queue:     utils.NewQueueManager(config.Threads),
		items:     NewItemDownloader(store, ledger, retrier, options),
	}, nil
}

// Run processes every resolved descriptor and returns the additively
// merged session result. A cancelled context stops new scopes; a
// failing scope never aborts its siblings.
func (e *Engine) Run(ctx context.Context, descriptors []internal.ContentDescriptor) internal.DownloadResult {
	var session internal.DownloadResult

	for _, desc := range descriptors {
		if ctx.Err() != nil {
			internal.LogWarn("Interrupted, skipping remaining %s inputs", desc.Type)
			break
		}
		session.Merge(e.runDescriptor(ctx, desc))
	}

	return session
}

// runDescriptor expands one descriptor into its scopes and drains them
func (e *Engine) runDescriptor(ctx context.Context, desc internal.ContentDescriptor) internal.DownloadResult {
	var result internal.DownloadResult

	switch desc.Type {
	case internal.ContentVideo, internal.ContentGallery:
		result.Merge(e.downloadSingle(ctx, desc))

	case internal.ContentUser:
		for _, mode := range e.config.Modes {
			if ctx.Err() != nil {
				break
			}
			result.Merge(e.runUserMode(ctx, desc.ID, mode))
		}

	case internal.ContentMix:
		result.Merge(e.runMixScope(ctx, desc.ID))

	case internal.ContentMusic:
		result.Merge(e.runMusicScope(ctx, desc.ID))

	case internal.ContentLive:
		internal.LogWarn("Live rooms cannot be downloaded, skipping %s", desc.ID)

	default:
		internal.LogWarn("Unknown content type for %s, skipping", desc.RawURL)
	}

	return result
}

// runUserMode runs one of a user's modes: post, like or allmix
func (e *Engine) runUserMode(ctx context.Context, secUID, mode string) internal.DownloadResult {
	// Entity lookups are outbound calls too; every one goes through
	// the limiter
	if err := e.limiter.Acquire(ctx); err != nil {
		internal.LogWarn("User lookup for %s interrupted: %v", secUID, err)
		return internal.DownloadResult{}
	}

	user, err := e.apiClient.GetUser(ctx, secUID)
	if err != nil {
		// Entity lookup failure yields an empty result for the scope
		internal.LogWarn("User lookup failed for %s: %v", secUID, err)
		return internal.DownloadResult{}
	}

	if mode == "allmix" {
		return e.runAllMixes(ctx, user)
	}

	scope := internal.Scope{
		Mode:      mode,
		UserSecID: secUID,
		Author:    user.Nickname,
	}
	return e.DownloadScope(ctx, scope)
}

// runAllMixes enumerates a user's mixes and drains each as its own
// scope, capped by the allmix count
func (e *Engine) runAllMixes(ctx context.Context, user *internal.UserInfo) internal.DownloadResult {
	var result internal.DownloadResult

	if err := e.limiter.Acquire(ctx); err != nil {
		internal.LogWarn("Mix listing for %s interrupted: %v", user.SecUID, err)
		return result
	}

	mixes, err := e.apiClient.ListUserMixes(ctx, user.SecUID)
	if err != nil {
		internal.LogWarn("Mix listing failed for %s: %v", user.SecUID, err)
		return result
	}

	if limit := e.config.Number.For("allmix"); limit > 0 && len(mixes) > limit {
		mixes = mixes[:limit]
	}

	internal.LogInfo("Found %d mixes for %s", len(mixes), user.Nickname)
	for _, mix := range mixes {
		if ctx.Err() != nil {
			break
		}
		scope := internal.Scope{
			Mode:   "mix",
			MixID:  mix.MixID,
			Author: user.Nickname,
		}
		result.Merge(e.DownloadScope(ctx, scope))
	}
	return result
}

// runMixScope drains one mix given by id
func (e *Engine) runMixScope(ctx context.Context, mixID string) internal.DownloadResult {
	if err := e.limiter.Acquire(ctx); err != nil {
		internal.LogWarn("Mix lookup for %s interrupted: %v", mixID, err)
		return internal.DownloadResult{}
	}

	mix, err := e.apiClient.GetMix(ctx, mixID)
	if err != nil {
		internal.LogWarn("Mix lookup failed for %s: %v", mixID, err)
		return internal.DownloadResult{}
	}

	scope := internal.Scope{Mode: "mix", MixID: mix.MixID}
	return e.DownloadScope(ctx, scope)
}

// runMusicScope drains one music page given by id
func (e *Engine) runMusicScope(ctx context.Context, musicID string) internal.DownloadResult {
	if err := e.limiter.Acquire(ctx); err != nil {
		internal.LogWarn("Music lookup for %s interrupted: %v", musicID, err)
		return internal.DownloadResult{}
	}

	music, err := e.apiClient.GetMusic(ctx, musicID)
	if err != nil {
		internal.LogWarn("Music lookup failed for %s: %v", musicID, err)
		return internal.DownloadResult{}
	}

	scope := internal.Scope{Mode: "music", MusicID: music.MusicID, Author: music.Title}
	return e.DownloadScope(ctx, scope)
}

// downloadSingle fetches one item by id and runs it through the same
// asset pipeline as listed items
func (e *Engine) downloadSingle(ctx context.Context, desc internal.ContentDescriptor) internal.DownloadResult {
	var result internal.DownloadResult

	if err := e.limiter.Acquire(ctx); err != nil {
		internal.LogWarn("Item lookup for %s interrupted: %v", desc.ID, err)
		return result
	}

	item, err := e.apiClient.GetItem(ctx, desc.ID)
	if err != nil {
		internal.LogWarn("Item lookup failed for %s: %v", desc.ID, err)
		return result
	}

	scope := internal.Scope{
		Mode:      "post",
		UserSecID: item.AuthorID,
		Author:    item.AuthorName,
	}

	if done, err := e.ledger.IsDownloaded(ctx, item.ID, scope.Key()); err == nil && done {
		result.Add(internal.OutcomeSkipped)
		return result
	}

	outcome := e.items.Process(ctx, scope, *item)
	result.Add(outcome.Status)
	return result
}

// DownloadScope runs the full per-scope state machine: Paginating,
// Filtering, Dispatching, Finalizing. The returned result is complete
// even when pagination ended early.
func (e *Engine) DownloadScope(ctx context.Context, scope internal.Scope) internal.DownloadResult {
	var result internal.DownloadResult

	// Paginating
	items := e.paginate(ctx, scope)

	// Filtering
	items = e.filterByTime(items)
	items = e.limitCount(items, scope.Mode)

	// Dispatching: ledger-skipped items are finalized here, the rest
	// go through the bounded batch
	var batch []internal.Item
	for _, item := range items {
		done, err := e.ledger.IsDownloaded(ctx, item.ID, scope.Key())
		if err != nil {
			internal.LogWarn("Ledger lookup for item %s failed: %v", item.ID, err)
		}
		if done {
			result.Add(internal.OutcomeSkipped)
			continue
		}
		batch = append(batch, item)
	}

	if len(batch) > 0 {
		tracker := utils.NewBatchTracker(len(batch), e.config.QuietMode)
		outcomes := e.queue.DownloadBatch(ctx, func(ctx context.Context, item internal.Item) internal.Outcome {
			outcome := e.items.Process(ctx, scope, item)
			tracker.Increment(outcome.Status == internal.OutcomeSuccess, outcome.Status == internal.OutcomeSkipped)
			return outcome
		}, batch)
		tracker.Finish()

		// Finalizing
		for _, outcome := range outcomes {
			result.Add(outcome.Status)
			if outcome.Status == internal.OutcomeFailed {
				internal.LogWarn("Item %s failed: %s", outcome.ItemID, outcome.Detail)
			}
		}
	}

	internal.LogInfo("Scope %s done: %d total, %d success, %d failed, %d skipped",
		scope.Key(), result.Total, result.Success, result.Failed, result.Skipped)
	return result
}

// paginate drains the scope's listing. It stops on no-more-pages, an
// empty page, the mode's count cap, or - in incremental mode - as soon
// as an item is not newer than the scope's high-water mark. A page
// fetch failing after retries ends the loop early with the items
// collected so far.
func (e *Engine) paginate(ctx context.Context, scope internal.Scope) []internal.Item {
	var collected []internal.Item

	incremental := e.config.Increase.For(scope.Mode)
	var highWater time.Time
	var haveHighWater bool
	if incremental {
		hw, ok, err := e.ledger.HighWaterTime(ctx, scope.Key())
		if err != nil {
			internal.LogWarn("High-water lookup for %s failed: %v", scope.Key(), err)
		} else if ok {
			highWater, haveHighWater = hw, true
		}
	}

	limit := e.config.Number.For(scope.Mode)
	cursor := ""

	for {
		if err := e.limiter.Acquire(ctx); err != nil {
			internal.LogWarn("Pagination for %s interrupted: %v", scope.Key(), err)
			return collected
		}

		var page *internal.Page
		err := e.retrier.Do(ctx, func() error {
			var fetchErr error
			page, fetchErr = e.apiClient.FetchPage(ctx, scope, cursor)
			return fetchErr
		})
		if err != nil {
			// Partial result: the items gathered so far still count
			internal.LogWarn("Page fetch for %s failed, stopping pagination: %v", scope.Key(), err)
			return collected
		}

		if len(page.Items) == 0 {
			return collected
		}

		for _, item := range page.Items {
			// The early stop assumes a newest-first feed; the strict
			// switch exists for feeds that violate that ordering
			if incremental && haveHighWater && e.config.IncreaseStrict && !item.CreatedAt.After(highWater) {
				internal.LogDebug("Reached high-water mark for %s at item %s", scope.Key(), item.ID)
				return collected
			}
			collected = append(collected, item)
			if limit > 0 && len(collected) >= limit {
				return collected
			}
		}

		if !page.HasMore {
			return collected
		}
		cursor = page.NextCursor
	}
}

// filterByTime applies the inclusive start/end window over created_at
func (e *Engine) filterByTime(items []internal.Item) []internal.Item {
	from, hasFrom, to, hasTo := e.config.TimeWindow()
	if !hasFrom && !hasTo {
		return items
	}

	filtered := items[:0]
	for _, item := range items {
		if hasFrom && item.CreatedAt.Before(from) {
			continue
		}
		if hasTo && item.CreatedAt.After(to) {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

// limitCount truncates to the mode's configured maximum, keeping the
// first items in received order
func (e *Engine) limitCount(items []internal.Item, mode string) []internal.Item {
	limit := e.config.Number.For(mode)
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
