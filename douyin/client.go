package douyin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"dyfetch/internal"
	"dyfetch/utils"
)

// BaseURL is the platform's web API host
const BaseURL = "https://www.douyin.com"

// Session-class cookie names. These are stripped when listing another
// user's posts, otherwise the API answers with the logged-in account's
// own feed instead of the requested one.
var sessionCookieNames = []string{
	"sessionid",
	"sessionid_ss",
	"sid_guard",
	"sid_tt",
	"uid_tt",
	"uid_tt_ss",
}

// Signer signs a request URL before it is sent. The platform's actual
// signature scheme is an external concern; the default implementation
// passes URLs through unchanged.
type Signer interface {
	Sign(rawURL, userAgent string) (string, error)
}

type passthroughSigner struct{}

func (passthroughSigner) Sign(rawURL, _ string) (string, error) {
	return rawURL, nil
}

// Client is the concrete douyin web API client. It implements
// internal.APIClient against the aweme v1 web endpoints.
type Client struct {
	baseURL    string
	httpClient *utils.HTTPClient
	auth       *internal.AuthContext
	signer     Signer
	pageSize   int
}

// NewClient creates an API client for the given credential set
func NewClient(httpClient *utils.HTTPClient, auth *internal.AuthContext) *Client {
	if httpClient == nil {
		httpClient = utils.NewHTTPClient()
	}
	return &Client{
		baseURL:    BaseURL,
		httpClient: httpClient,
		auth:       auth,
		signer:     passthroughSigner{},
		pageSize:   20,
	}
}

// SetSigner installs a request signer. A nil signer restores the
// passthrough default.
func (c *Client) SetSigner(signer Signer) {
	if signer == nil {
		signer = passthroughSigner{}
	}
	c.signer = signer
}

// SetBaseURL overrides the API host, used by tests
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// listResponse is the shared shape of the listing endpoints. has_more
// is a pointer so an absent field is distinguishable from 0: absent
// means stop.
type listResponse struct {
	AwemeList []json.RawMessage `json:"aweme_list"`
	HasMore   *int              `json:"has_more"`
	MaxCursor json.Number       `json:"max_cursor"`
	Cursor    json.Number       `json:"cursor"`
}

// FetchPage fetches one page of a scope's listing. The cursor is the
// opaque value from the previous page, "" for the first page.
func (c *Client) FetchPage(ctx context.Context, scope internal.Scope, cursor string) (*internal.Page, error) {
	if cursor == "" {
		cursor = "0"
	}

	var path string
	params := c.defaultQuery()
	params.Set("count", fmt.Sprintf("%d", c.pageSize))

	stripSession := false
	switch scope.Mode {
	case "post":
		path = "/aweme/v1/web/aweme/post/"
		params.Set("sec_user_id", scope.UserSecID)
		params.Set("max_cursor", cursor)
		params.Set("locate_query", "false")
		params.Set("publish_video_strategy_type", "2")
		stripSession = true
	case "like":
		path = "/aweme/v1/web/aweme/favorite/"
		params.Set("sec_user_id", scope.UserSecID)
		params.Set("max_cursor", cursor)
	case "mix":
		path = "/aweme/v1/web/mix/aweme/"
		params.Set("mix_id", scope.MixID)
		params.Set("cursor", cursor)
	case "music":
		path = "/aweme/v1/web/music/aweme/"
		params.Set("music_id", scope.MusicID)
		params.Set("cursor", cursor)
	default:
		return nil, internal.NewValidationErrorWithValue("mode", "unsupported listing mode", scope.Mode)
	}

	var payload listResponse
	if err := c.getJSON(ctx, path, params, stripSession, &payload); err != nil {
		return nil, err
	}

	page := &internal.Page{}
	if payload.HasMore != nil && *payload.HasMore == 1 {
		page.HasMore = true
	}

	// post/like advance max_cursor, mix/music advance cursor; forward
	// whichever the response carried, verbatim
	switch scope.Mode {
	case "mix", "music":
		page.NextCursor = payload.Cursor.String()
	default:
		page.NextCursor = payload.MaxCursor.String()
	}

	for _, rawMsg := range payload.AwemeList {
		item, err := decodeItem(rawMsg)
		if err != nil {
			internal.LogWarn("Skipping undecodable item in %s listing: %v", scope.Mode, err)
			continue
		}
		page.Items = append(page.Items, item)
	}

	return page, nil
}

// ResolveShortLink follows a v.douyin.com short link to its final URL
func (c *Client) ResolveShortLink(ctx context.Context, shortURL string) (string, error) {
	resp, err := c.httpClient.GetWithContext(ctx, shortURL, map[string]string{
		"Accept": "text/html,application/xhtml+xml,*/*",
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String(), nil
	}
	return "", internal.NewInvalidURLError(shortURL, "short link did not redirect")
}

// userResponse is the profile endpoint's envelope
type userResponse struct {
	User struct {
		UID          string  `json:"uid"`
		SecUID       string  `json:"sec_uid"`
		Nickname     string  `json:"nickname"`
		AvatarLarger RawURLs `json:"avatar_larger"`
	} `json:"user"`
}

// GetUser fetches a user's profile metadata before pagination
func (c *Client) GetUser(ctx context.Context, secUID string) (*internal.UserInfo, error) {
	params := c.defaultQuery()
	params.Set("sec_user_id", secUID)

	var payload userResponse
	if err := c.getJSON(ctx, "/aweme/v1/web/user/profile/other/", params, false, &payload); err != nil {
		return nil, err
	}

	if payload.User.SecUID == "" && payload.User.Nickname == "" {
		return nil, internal.NewEntityNotFoundError("user", secUID)
	}

	return &internal.UserInfo{
		SecUID:    payload.User.SecUID,
		UID:       payload.User.UID,
		Nickname:  payload.User.Nickname,
		AvatarURL: payload.User.AvatarLarger.First(),
	}, nil
}

// GetMix fetches a mix's metadata via the first page of its listing.
// The platform exposes no standalone mix-detail endpoint on the web
// API; the mix name rides on each item's mix_info block.
func (c *Client) GetMix(ctx context.Context, mixID string) (*internal.MixInfo, error) {
	params := c.defaultQuery()
	params.Set("mix_id", mixID)
	params.Set("cursor", "0")
	params.Set("count", "1")

	var payload listResponse
	if err := c.getJSON(ctx, "/aweme/v1/web/mix/aweme/", params, false, &payload); err != nil {
		return nil, err
	}

	if len(payload.AwemeList) == 0 {
		return nil, internal.NewEntityNotFoundError("mix", mixID)
	}

	var raw RawItem
	if err := json.Unmarshal(payload.AwemeList[0], &raw); err != nil {
		return nil, internal.NewDouyinError(200, "unparseable mix listing payload", internal.ErrInvalidResponse)
	}

	info := &internal.MixInfo{MixID: mixID}
	if raw.MixInfo != nil {
		info.Name = raw.MixInfo.MixName
	}
	return info, nil
}

// GetMusic fetches a music page's metadata via its first listed item
func (c *Client) GetMusic(ctx context.Context, musicID string) (*internal.MusicInfo, error) {
	params := c.defaultQuery()
	params.Set("music_id", musicID)
	params.Set("cursor", "0")
	params.Set("count", "1")

	var payload listResponse
	if err := c.getJSON(ctx, "/aweme/v1/web/music/aweme/", params, false, &payload); err != nil {
		return nil, err
	}

	if len(payload.AwemeList) == 0 {
		return nil, internal.NewEntityNotFoundError("music", musicID)
	}

	var raw RawItem
	if err := json.Unmarshal(payload.AwemeList[0], &raw); err != nil {
		return nil, internal.NewDouyinError(200, "unparseable music listing payload", internal.ErrInvalidResponse)
	}

	return &internal.MusicInfo{MusicID: musicID, Title: raw.Music.Title}, nil
}

// detailResponse is the aweme detail endpoint's envelope
type detailResponse struct {
	AwemeDetail json.RawMessage `json:"aweme_detail"`
}

// GetItem fetches one aweme by id, for direct video/note URLs
func (c *Client) GetItem(ctx context.Context, itemID string) (*internal.Item, error) {
	params := c.defaultQuery()
	params.Set("aweme_id", itemID)
	params.Set("aid", "1128")

	var payload detailResponse
	if err := c.getJSON(ctx, "/aweme/v1/web/aweme/detail/", params, false, &payload); err != nil {
		return nil, err
	}

	if len(payload.AwemeDetail) == 0 || string(payload.AwemeDetail) == "null" {
		return nil, internal.NewEntityNotFoundError("video", itemID)
	}

	item, err := decodeItem(payload.AwemeDetail)
	if err != nil {
		return nil, internal.NewDouyinError(200, "unparseable aweme detail payload", internal.ErrInvalidResponse).WithContext("item_id", itemID)
	}
	return &item, nil
}

// mixListResponse is the collection listing endpoint's envelope
type mixListResponse struct {
	MixInfos []struct {
		MixID   string `json:"mix_id"`
		MixName string `json:"mix_name"`
	} `json:"mix_infos"`
}

// ListUserMixes enumerates the mixes a user has published
func (c *Client) ListUserMixes(ctx context.Context, secUID string) ([]internal.MixInfo, error) {
	params := c.defaultQuery()
	params.Set("sec_user_id", secUID)

	var payload mixListResponse
	if err := c.getJSON(ctx, "/aweme/v1/web/mix/listcollection/", params, false, &payload); err != nil {
		return nil, err
	}

	mixes := make([]internal.MixInfo, 0, len(payload.MixInfos))
	for _, info := range payload.MixInfos {
		mixes = append(mixes, internal.MixInfo{MixID: info.MixID, Name: info.MixName})
	}
	return mixes, nil
}

// getJSON performs one signed GET against path and decodes the JSON
// body into out. stripSession removes session-class cookies from the
// request.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, stripSession bool, out interface{}) error {
	fullURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	signedURL, err := c.signer.Sign(fullURL, c.httpClient.GetCurrentUserAgent())
	if err != nil {
		return internal.NewDouyinError(0, "request signing failed: "+err.Error(), internal.ErrInvalidResponse)
	}

	headers := map[string]string{}
	if c.auth != nil {
		var cookieHeader string
		if stripSession {
			cookieHeader = c.auth.CookieHeader(sessionCookieNames...)
		} else {
			cookieHeader = c.auth.CookieHeader()
		}
		if cookieHeader != "" {
			headers["Cookie"] = cookieHeader
		}
		if c.auth.UserAgent != "" {
			headers["User-Agent"] = c.auth.UserAgent
		}
	}

	resp, err := c.httpClient.GetWithContext(ctx, signedURL, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return internal.NewDouyinError(resp.StatusCode, "failed to read response body: "+err.Error(), internal.ErrInvalidResponse)
	}

	// An empty body is the platform's way of rejecting unsigned or
	// stale-cookie requests while still answering 200
	if len(body) == 0 {
		return internal.NewDouyinError(resp.StatusCode, "empty response body", internal.ErrInvalidResponse).
			WithSuggestion("The cookies may be stale or the request signature was rejected. Refresh your cookies")
	}

	if err := json.Unmarshal(body, out); err != nil {
		return internal.NewDouyinError(resp.StatusCode, "failed to parse JSON response: "+err.Error(), internal.ErrInvalidResponse)
	}
	return nil
}

// defaultQuery returns the browser-profile query parameters the web
// API expects on every request
func (c *Client) defaultQuery() url.Values {
	params := url.Values{}
	params.Set("device_platform", "webapp")
	params.Set("aid", "6383")
	params.Set("channel", "channel_pc_web")
	params.Set("pc_client_type", "1")
	params.Set("version_code", "170400")
	params.Set("version_name", "17.4.0")
	params.Set("cookie_enabled", "true")
	params.Set("screen_width", "1920")
	params.Set("screen_height", "1080")
	params.Set("browser_language", "zh-CN")
	params.Set("browser_platform", "Win32")
	params.Set("browser_name", "Chrome")
	params.Set("browser_version", "123.0.0.0")
	params.Set("browser_online", "true")
	params.Set("engine_name", "Blink")
	params.Set("engine_version", "123.0.0.0")
	params.Set("os_name", "Windows")
	params.Set("os_version", "10")
	params.Set("cpu_core_num", "8")
	params.Set("device_memory", "8")
	params.Set("platform", "PC")
	params.Set("downlink", "10")
	params.Set("effective_type", "4g")
	params.Set("round_trip_time", "50")
	if c.auth != nil && c.auth.MsToken != "" {
		params.Set("msToken", c.auth.MsToken)
	}
	return params
}

// decodeItem unmarshals one raw aweme payload both into the typed
// boundary struct and into a generic map kept for the JSON sidecar
func decodeItem(rawMsg json.RawMessage) (internal.Item, error) {
	var raw RawItem
	if err := json.Unmarshal(rawMsg, &raw); err != nil {
		return internal.Item{}, err
	}
	if raw.AwemeID == "" {
		return internal.Item{}, fmt.Errorf("payload has no aweme_id")
	}

	var rawJSON map[string]interface{}
	if err := json.Unmarshal(rawMsg, &rawJSON); err != nil {
		rawJSON = nil
	}

	return Normalize(&raw, rawJSON), nil
}
