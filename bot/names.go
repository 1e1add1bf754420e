// bot/names.go
package bot

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wfunc/duelserver/logger"
)

const (
	defaultNameURL = "https://randomuser.me/api/"
	fallbackName   = "RockyBot"
)

// NameClient sources bot display names from an external generator so
// synthetic opponents read as humans. Any failure falls back to a fixed
// default.
type NameClient struct {
	url    string
	client *http.Client
}

func NewNameClient() *NameClient {
	return &NameClient{
		url: defaultNameURL,
		client: &http.Client{
			Timeout: 3 * time.Second,
		},
	}
}

// NewNameClientWithURL is used by tests to point at a stub server.
func NewNameClientWithURL(url string) *NameClient {
	c := NewNameClient()
	c.url = url
	return c
}

type nameResponse struct {
	Results []struct {
		Login struct {
			Username string `json:"username"`
		} `json:"login"`
	} `json:"results"`
}

func (c *NameClient) FetchName() string {
	resp, err := c.client.Get(c.url)
	if err != nil {
		logger.Log.Warnf("Bot name fetch failed: %v", err)
		return fallbackName
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Log.Warnf("Bot name fetch returned status %d", resp.StatusCode)
		return fallbackName
	}

	var parsed nameResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logger.Log.Warnf("Bot name response decode failed: %v", err)
		return fallbackName
	}

	if len(parsed.Results) == 0 || parsed.Results[0].Login.Username == "" {
		return fallbackName
	}
	return parsed.Results[0].Login.Username
}
