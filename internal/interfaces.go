package internal

import (
	"context"
	"time"
)

// ContentResolver maps an input URL or share text to a typed descriptor
type ContentResolver interface {
	Resolve(ctx context.Context, rawURL string) (*ContentDescriptor, error)
}

// AuthProvider supplies the credential set consumed by the API client
type AuthProvider interface {
	LoadCookies(path string) (*AuthContext, error)
	ValidateSession(auth *AuthContext) error
}

// APIClient performs signed listing calls against the platform.
// Request signing, header construction and anti-bot countermeasures are
// internal to implementations.
type APIClient interface {
	FetchPage(ctx context.Context, scope Scope, cursor string) (*Page, error)
	ResolveShortLink(ctx context.Context, shortURL string) (string, error)
	GetUser(ctx context.Context, secUID string) (*UserInfo, error)
	GetMix(ctx context.Context, mixID string) (*MixInfo, error)
	GetMusic(ctx context.Context, musicID string) (*MusicInfo, error)
	GetItem(ctx context.Context, itemID string) (*Item, error)
	ListUserMixes(ctx context.Context, secUID string) ([]MixInfo, error)
}

// UserInfo is the entity metadata preceding a user scope's pagination
type UserInfo struct {
	SecUID    string
	UID       string
	Nickname  string
	AvatarURL string
}

// MixInfo describes one mix (collection)
type MixInfo struct {
	MixID string
	Name  string
}

// MusicInfo describes one music page
type MusicInfo struct {
	MusicID string
	Title   string
}

// Ledger records previously-downloaded item identifiers per scope.
// Implementations must make Record idempotent (insert-if-absent) and
// safe under concurrent per-item calls.
type Ledger interface {
	IsDownloaded(ctx context.Context, itemID, scopeKey string) (bool, error)
	Record(ctx context.Context, itemID, scopeKey string, createdAt time.Time, detail string) error
	HighWaterTime(ctx context.Context, scopeKey string) (time.Time, bool, error)
}

// FileStore resolves save paths and streams assets to disk
type FileStore interface {
	SavePathFor(author, mode, title, id string) string
	FileExistsNonEmpty(path string) bool
	StreamDownload(ctx context.Context, url, path string, headers map[string]string) error
	WriteSidecar(path string, data []byte) error
}

// RateLimiter enforces a minimum interval between outbound requests
type RateLimiter interface {
	Acquire(ctx context.Context) error
	SetInterval(d time.Duration)
}
