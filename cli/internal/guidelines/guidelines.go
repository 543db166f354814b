// Package guidelines resolves a user-supplied guidelines reference into text.
// Classification is purely syntactic: an http/https URL is fetched, an
// existing local path is read, anything else is taken as literal inline text.
package guidelines

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"aicommit/cli/internal/erruser"
)

// fetchTimeout bounds the remote fetch when no client is supplied.
const fetchTimeout = 10 * time.Second

// maxRemoteBytes caps how much of a remote document is read.
const maxRemoteBytes = 1 << 20

// Resolve turns ref into guidelines text. Guidelines resolution was explicitly
// requested by the user, so fetch and read failures are returned as fatal
// errors rather than degraded. client may be nil; a default with a 10s timeout
// is used.
func Resolve(ctx context.Context, ref string, client *http.Client) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return fetch(ctx, ref, client)
	}
	if info, err := os.Stat(ref); err == nil && info.Mode().IsRegular() {
		data, err := os.ReadFile(ref)
		if err != nil {
			return "", erruser.New("Could not read the guidelines file.", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.TrimSpace(ref), nil
}

func fetch(ctx context.Context, url string, client *http.Client) (string, error) {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", erruser.New("Could not fetch the guidelines URL.", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", erruser.New("Could not fetch the guidelines URL.", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", erruser.New("Could not fetch the guidelines URL.", fmt.Errorf("HTTP %d from %s", resp.StatusCode, url))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBytes))
	if err != nil {
		return "", erruser.New("Could not fetch the guidelines URL.", err)
	}
	return strings.TrimSpace(string(data)), nil
}
