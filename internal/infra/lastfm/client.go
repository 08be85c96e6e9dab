// Package lastfm provides a client for the Last.fm scrobbling API.
package lastfm

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Client is a Last.fm API client. Write calls are signed with the API secret
// and authorized by a session key.
type Client struct {
	apiKey     string
	apiSecret  string
	sessionKey string
	baseURL    string
	httpClient *http.Client
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey     string
	APISecret  string
	SessionKey string
	Timeout    time.Duration
}

// NowPlaying describes the track sent with track.updateNowPlaying.
type NowPlaying struct {
	Artist      string
	Track       string
	Album       string
	AlbumArtist string
	TrackNumber int
	Duration    time.Duration
}

// Scrobble describes a finished listen sent with track.scrobble.
type Scrobble struct {
	NowPlaying
	StartedAt time.Time
}

// LastFMError represents an error response from Last.fm API.
type LastFMError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// nowPlayingResponse represents the response from track.updateNowPlaying.
type nowPlayingResponse struct {
	NowPlaying struct {
		IgnoredMessage struct {
			Code string `json:"code"`
			Text string `json:"#text"`
		} `json:"ignoredMessage"`
	} `json:"nowplaying"`
}

// scrobbleResponse represents the response from track.scrobble.
type scrobbleResponse struct {
	Scrobbles struct {
		Attr struct {
			Accepted int `json:"accepted"`
			Ignored  int `json:"ignored"`
		} `json:"@attr"`
	} `json:"scrobbles"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}
	if cfg.APISecret == "" {
		return nil, errors.New("last.fm API secret is required")
	}
	if cfg.SessionKey == "" {
		return nil, errors.New("last.fm session key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		sessionKey: cfg.SessionKey,
		baseURL:    "https://ws.audioscrobbler.com/2.0/",
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// UpdateNowPlaying notifies Last.fm that the user started listening to a track.
// Reference: https://www.last.fm/api/show/track.updateNowPlaying
func (c *Client) UpdateNowPlaying(ctx context.Context, np NowPlaying) error {
	if np.Track == "" || np.Artist == "" {
		return errors.New("track name and artist name are required")
	}

	params := url.Values{}
	params.Set("method", "track.updateNowPlaying")
	setTrackParams(params, np, "")

	body, err := c.post(ctx, params)
	if err != nil {
		return err
	}

	var response nowPlayingResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	if msg := response.NowPlaying.IgnoredMessage; msg.Code != "" && msg.Code != "0" {
		zlog.Debug().Msgf("last.fm: now playing ignored: code=%s message=%s", msg.Code, msg.Text)
	}

	return nil
}

// Scrobble records a finished listen.
// Reference: https://www.last.fm/api/show/track.scrobble
func (c *Client) Scrobble(ctx context.Context, s Scrobble) error {
	if s.Track == "" || s.Artist == "" {
		return errors.New("track name and artist name are required")
	}
	if s.StartedAt.IsZero() {
		return errors.New("scrobble start time is required")
	}

	params := url.Values{}
	params.Set("method", "track.scrobble")
	setTrackParams(params, s.NowPlaying, "[0]")
	params.Set("timestamp[0]", fmt.Sprintf("%d", s.StartedAt.Unix()))

	body, err := c.post(ctx, params)
	if err != nil {
		return err
	}

	var response scrobbleResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	if response.Scrobbles.Attr.Ignored > 0 {
		return errors.Newf("scrobble ignored by last.fm: track=%s", s.Track)
	}

	return nil
}

// setTrackParams sets the track fields with an optional array suffix.
func setTrackParams(params url.Values, np NowPlaying, suffix string) {
	params.Set("artist"+suffix, np.Artist)
	params.Set("track"+suffix, np.Track)
	if np.Album != "" {
		params.Set("album"+suffix, np.Album)
	}
	if np.AlbumArtist != "" && np.AlbumArtist != np.Artist {
		params.Set("albumArtist"+suffix, np.AlbumArtist)
	}
	if np.TrackNumber > 0 {
		params.Set("trackNumber"+suffix, fmt.Sprintf("%d", np.TrackNumber))
	}
	if np.Duration > 0 {
		params.Set("duration"+suffix, fmt.Sprintf("%d", int(np.Duration.Seconds())))
	}
}

// post signs params and sends them as a form.
func (c *Client) post(ctx context.Context, params url.Values) ([]byte, error) {
	params.Set("api_key", c.apiKey)
	params.Set("sk", c.sessionKey)
	params.Set("api_sig", Sign(params, c.apiSecret))
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	// Check for Last.fm API errors
	var apiError LastFMError
	if err := json.Unmarshal(body, &apiError); err == nil && apiError.Error != 0 {
		return nil, errors.Errorf("last.fm API error %d: %s", apiError.Error, apiError.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("last.fm API returned status %d", resp.StatusCode)
	}

	return body, nil
}

// Sign computes the api_sig of a request: the md5 of every parameter except
// format and callback, sorted by name and concatenated as name+value,
// followed by the secret.
func Sign(params url.Values, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "format" || k == "callback" || k == "api_sig" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	b.WriteString(secret)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
