package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dyfetch/internal"
)

// fakeAPIClient serves canned pages and entities for engine tests
type fakeAPIClient struct {
	mu sync.Mutex

	pages      map[string][]internal.Page // scope key -> pages in order
	pageCalls  map[string]int
	pageErr    error
	failAtCall int // 1-based FetchPage call index that returns pageErr; 0 = every call
	users      map[string]*internal.UserInfo
	mixes      map[string]*internal.MixInfo
	musics     map[string]*internal.MusicInfo
	items      map[string]*internal.Item
	userMixes  map[string][]internal.MixInfo
	shortLinks map[string]string
}

func newFakeAPIClient() *fakeAPIClient {
	return &fakeAPIClient{
		pages:      make(map[string][]internal.Page),
		pageCalls:  make(map[string]int),
		users:      make(map[string]*internal.UserInfo),
		mixes:      make(map[string]*internal.MixInfo),
		musics:     make(map[string]*internal.MusicInfo),
		items:      make(map[string]*internal.Item),
		userMixes:  make(map[string][]internal.MixInfo),
		shortLinks: make(map[string]string),
	}
}

func (f *fakeAPIClient) FetchPage(ctx context.Context, scope internal.Scope, cursor string) (*internal.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := scope.Key()
	idx := f.pageCalls[key]
	f.pageCalls[key]++

	if f.pageErr != nil && (f.failAtCall == 0 || f.failAtCall == idx+1) {
		return nil, f.pageErr
	}

	pages := f.pages[key]
	if idx >= len(pages) {
		return &internal.Page{}, nil
	}
	page := pages[idx]
	return &page, nil
}

func (f *fakeAPIClient) ResolveShortLink(ctx context.Context, shortURL string) (string, error) {
	if final, ok := f.shortLinks[shortURL]; ok {
		return final, nil
	}
	return "", internal.NewInvalidURLError(shortURL, "unknown short link")
}

func (f *fakeAPIClient) GetUser(ctx context.Context, secUID string) (*internal.UserInfo, error) {
	if user, ok := f.users[secUID]; ok {
		return user, nil
	}
	return nil, internal.NewEntityNotFoundError("user", secUID)
}

func (f *fakeAPIClient) GetMix(ctx context.Context, mixID string) (*internal.MixInfo, error) {
	if mix, ok := f.mixes[mixID]; ok {
		return mix, nil
	}
	return nil, internal.NewEntityNotFoundError("mix", mixID)
}

func (f *fakeAPIClient) GetMusic(ctx context.Context, musicID string) (*internal.MusicInfo, error) {
	if music, ok := f.musics[musicID]; ok {
		return music, nil
	}
	return nil, internal.NewEntityNotFoundError("music", musicID)
}

func (f *fakeAPIClient) GetItem(ctx context.Context, itemID string) (*internal.Item, error) {
	if item, ok := f.items[itemID]; ok {
		return item, nil
	}
	return nil, internal.NewEntityNotFoundError("video", itemID)
}

func (f *fakeAPIClient) ListUserMixes(ctx context.Context, secUID string) ([]internal.MixInfo, error) {
	return f.userMixes[secUID], nil
}

// fakeLedger is an in-memory Ledger implementation
type fakeLedger struct {
	mu      sync.Mutex
	records map[string]time.Time // itemID|scopeKey -> createdAt
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[string]time.Time)}
}

func ledgerKey(itemID, scopeKey string) string {
	return itemID + "|" + scopeKey
}

func (l *fakeLedger) IsDownloaded(ctx context.Context, itemID, scopeKey string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[ledgerKey(itemID, scopeKey)]
	return ok, nil
}

func (l *fakeLedger) Record(ctx context.Context, itemID, scopeKey string, createdAt time.Time, detail string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey(itemID, scopeKey)
	if _, ok := l.records[key]; !ok {
		l.records[key] = createdAt
	}
	return nil
}

func (l *fakeLedger) HighWaterTime(ctx context.Context, scopeKey string) (time.Time, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var high time.Time
	found := false
	for key, createdAt := range l.records {
		if len(key) > len(scopeKey) && key[len(key)-len(scopeKey):] == scopeKey {
			if createdAt.After(high) {
				high = createdAt
				found = true
			}
		}
	}
	return high, found, nil
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// fakeFileStore records downloads without touching the network or disk
type fakeFileStore struct {
	mu        sync.Mutex
	existing  map[string]bool   // paths that count as already present
	fetched   []string          // urls passed to StreamDownload
	sidecars  map[string][]byte // path -> data
	streamErr map[string]error  // url -> forced error
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{
		existing:  make(map[string]bool),
		sidecars:  make(map[string][]byte),
		streamErr: make(map[string]error),
	}
}

func (s *fakeFileStore) SavePathFor(author, mode, title, id string) string {
	return fmt.Sprintf("/fake/%s/%s/%s_%s", author, mode, title, id)
}

func (s *fakeFileStore) FileExistsNonEmpty(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing[path]
}

func (s *fakeFileStore) StreamDownload(ctx context.Context, url, path string, headers map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.streamErr[url]; ok {
		return err
	}
	s.fetched = append(s.fetched, url)
	s.existing[path] = true
	return nil
}

func (s *fakeFileStore) WriteSidecar(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sidecars[path] = data
	return nil
}

func (s *fakeFileStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetched)
}

func (s *fakeFileStore) fetchedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.fetched))
	copy(out, s.fetched)
	return out
}

// noopLimiter never delays
type noopLimiter struct{}

func (noopLimiter) Acquire(ctx context.Context) error { return ctx.Err() }
func (noopLimiter) SetInterval(d time.Duration)       {}

// countingLimiter records how many permits the engine takes
type countingLimiter struct {
	mu       sync.Mutex
	acquired int
}

func (l *countingLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	l.acquired++
	l.mu.Unlock()
	return ctx.Err()
}

func (l *countingLimiter) SetInterval(d time.Duration) {}

func (l *countingLimiter) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired
}
