package source

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"taglink/config"
	"taglink/logging"
)

// HTTPSource polls a remote JSON endpoint for tag data and settings.
// The HTTP client owns the per-request timeout so a stalled upstream cannot
// block the poll loop indefinitely.
type HTTPSource struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPSource creates a source backed by a remote HTTP provider.
func NewHTTPSource(cfg *config.SourceConfig) *HTTPSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPSource{
		baseURL: cfg.URL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
	}
}

// GetAllData fetches the current value set from {base}/data.
func (s *HTTPSource) GetAllData() (interface{}, error) {
	var raw interface{}
	if err := s.getJSON(s.baseURL+"/data", &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// GetSettings fetches provider settings from {base}/settings.
func (s *HTTPSource) GetSettings() (map[string]string, error) {
	var raw map[string]interface{}
	if err := s.getJSON(s.baseURL+"/settings", &raw); err != nil {
		return nil, err
	}

	settings := make(map[string]string, len(raw))
	for k, v := range raw {
		settings[k] = fmt.Sprintf("%v", v)
	}
	return settings, nil
}

func (s *HTTPSource) getJSON(url string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		logging.DebugLog("source", "GET %s failed: %v", url, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("upstream returned HTTP %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
