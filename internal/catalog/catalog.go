package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Henry-Sarabia/igdb/v2"
	"github.com/charmbracelet/log"
)

// Entry is a single search result from the external game database.
type Entry struct {
	ID               int
	Name             string
	Summary          string
	Rating           float64
	FirstReleaseDate int64
	DLCs             []int
	CoverID          int
}

// HasReleaseDate reports whether the entry carries a release date.
func (e *Entry) HasReleaseDate() bool { return e.FirstReleaseDate != 0 }

// HasRating reports whether the entry carries a user rating.
func (e *Entry) HasRating() bool { return e.Rating != 0 }

// HasDLCs reports whether the entry carries DLC data.
func (e *Entry) HasDLCs() bool { return len(e.DLCs) > 0 }

// ReleaseYear returns the UTC release year, or 0 when unknown.
func (e *Entry) ReleaseYear() int {
	if e.FirstReleaseDate == 0 {
		return 0
	}
	return time.Unix(e.FirstReleaseDate, 0).UTC().Year()
}

// Client wraps the IGDB API for game search and cover lookups.
type Client struct {
	igdbClient   *igdb.Client
	clientID     string
	excludeAdult bool
	logger       *log.Logger
}

// IGDB theme id for erotica; filtered out when catalog_exclude_adult is set.
const adultThemeID = 42

// New creates a catalog client from IGDB credentials.
func New(clientID, token string, excludeAdult bool, logger *log.Logger) *Client {
	return &Client{
		igdbClient:   igdb.NewClient(clientID, token, nil),
		clientID:     clientID,
		excludeAdult: excludeAdult,
		logger:       logger,
	}
}

// Search queries the game database for titles matching the query. A purely
// numeric query is treated as a database ID and looked up directly with a
// single-result limit.
func (c *Client) Search(query string) ([]*Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty game name")
	}

	if id, err := strconv.Atoi(query); err == nil {
		return c.byID(id)
	}

	opts := []igdb.Option{
		igdb.SetFields("id", "name", "summary", "rating", "first_release_date", "dlcs", "cover"),
		igdb.SetLimit(500),
		igdb.SetFilter("summary", igdb.OpNotEquals, "null"),
		igdb.SetFilter("rating", igdb.OpNotEquals, "null"),
	}
	if c.excludeAdult {
		opts = append(opts, igdb.SetFilter("themes", igdb.OpNotEquals, strconv.Itoa(adultThemeID)))
	}

	games, err := c.igdbClient.Games.Search(query, opts...)
	if err != nil {
		if isNoResults(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("igdb search error: %w", err)
	}

	return entriesFromGames(games), nil
}

// byID fetches a single game by its database identifier.
func (c *Client) byID(id int) ([]*Entry, error) {
	game, err := c.igdbClient.Games.Get(id,
		igdb.SetFields("id", "name", "summary", "rating", "first_release_date", "dlcs", "cover"),
	)
	if err != nil {
		if isNoResults(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("igdb id lookup error: %w", err)
	}
	return entriesFromGames([]*igdb.Game{game}), nil
}

func entriesFromGames(games []*igdb.Game) []*Entry {
	entries := make([]*Entry, 0, len(games))
	for _, g := range games {
		if g == nil || g.Name == "" {
			continue
		}
		entries = append(entries, &Entry{
			ID:               g.ID,
			Name:             g.Name,
			Summary:          g.Summary,
			Rating:           g.Rating,
			FirstReleaseDate: int64(g.FirstReleaseDate),
			DLCs:             g.DLCS,
			CoverID:          g.Cover,
		})
	}
	return entries
}

// CoverURL resolves the big cover image URL for a game. The API hands back
// thumbnail URLs; swap the size segment the same way the original site images
// are addressed.
func (c *Client) CoverURL(gameID int) (string, error) {
	covers, err := c.igdbClient.Covers.Index(
		igdb.SetFields("url"),
		igdb.SetLimit(1),
		igdb.SetFilter("animated", igdb.OpEquals, "false"),
		igdb.SetFilter("game", igdb.OpEquals, strconv.Itoa(gameID)),
	)
	if err != nil {
		if isNoResults(err) {
			return "", nil
		}
		return "", fmt.Errorf("igdb cover lookup error: %w", err)
	}
	if len(covers) == 0 || covers[0].URL == "" {
		return "", nil
	}

	u := covers[0].URL
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	return strings.Replace(u, "t_thumb", "t_cover_big", 1), nil
}

// FetchImage downloads raw image bytes for cover-art color derivation.
func (c *Client) FetchImage(imageURL string) ([]byte, error) {
	resp, err := http.Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed reading image body: %w", err)
	}
	return body, nil
}

// RefreshToken requests a new app access token from Twitch and swaps the
// underlying IGDB client to use it. Returns the token and its lifetime so the
// caller can persist it.
func (c *Client) RefreshToken(clientSecret string) (string, int, error) {
	u, err := url.Parse("https://id.twitch.tv/oauth2/token")
	if err != nil {
		return "", 0, err
	}
	q := u.Query()
	q.Set("client_id", c.clientID)
	q.Set("client_secret", clientSecret)
	q.Set("grant_type", "client_credentials")
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodPost, u.String(), nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		bodyStr := string(body)
		if len(bodyStr) > 200 {
			bodyStr = bodyStr[:200] + "..."
		}
		return "", 0, fmt.Errorf("twitch token endpoint returned %d: %s", resp.StatusCode, bodyStr)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, err
	}
	if parsed.AccessToken == "" {
		return "", 0, fmt.Errorf("empty access_token in response")
	}

	c.igdbClient = igdb.NewClient(c.clientID, parsed.AccessToken, nil)

	return parsed.AccessToken, parsed.ExpiresIn, nil
}

// IsAuthFailure reports whether an error is an authorization failure from the
// catalog API. These are fatal for the whole batch: credentials need manual
// rotation and retrying would just hammer the API.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "401") ||
		strings.Contains(msg, "403") ||
		strings.Contains(strings.ToLower(msg), "unauthorized")
}

// isNoResults matches the client library's empty-result error.
func isNoResults(err error) bool {
	return err != nil && strings.Contains(err.Error(), "results are empty")
}
