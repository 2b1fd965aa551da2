// ABOUTME: Protocol version descriptor and best-effort fetch of the latest one
// ABOUTME: Falls back to a cached default when the fetch fails

package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Version is the protocol version descriptor announced during the handshake.
type Version struct {
	Major int
	Minor int
	Patch int
}

// DefaultVersion is the cached descriptor used when the latest one cannot be
// fetched. Stale versions are accepted by the remote for a long grace window.
var DefaultVersion = Version{2, 3000, 1023223821}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// MarshalJSON encodes the version in the wire form [major, minor, patch].
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{v.Major, v.Minor, v.Patch})
}

// UnmarshalJSON decodes the [major, minor, patch] wire form.
func (v *Version) UnmarshalJSON(data []byte) error {
	var parts [3]int
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("decoding version: %w", err)
	}
	v.Major, v.Minor, v.Patch = parts[0], parts[1], parts[2]
	return nil
}

const versionFetchTimeout = 10 * time.Second

// FetchLatestVersion retrieves the latest protocol version descriptor from
// the given URL. The endpoint responds with {"version": [major, minor, patch]}.
// Callers treat failures as non-fatal and keep a cached default.
func FetchLatestVersion(ctx context.Context, url string) (Version, error) {
	ctx, cancel := context.WithTimeout(ctx, versionFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Version{}, fmt.Errorf("building version request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Version{}, fmt.Errorf("fetching version: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Version{}, fmt.Errorf("fetching version: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Version Version `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Version{}, fmt.Errorf("decoding version response: %w", err)
	}
	return body.Version, nil
}
