package users

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Profile is the display metadata of a user, owned by the profile service.
type Profile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// Directory looks up counterpart display metadata. It is an opaque
// collaborator: the messaging core never writes profiles.
type Directory interface {
	BulkUsers(ctx context.Context, ids []string) (map[string]Profile, error)
}

// HTTPDirectory resolves profiles from the platform's profile service.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDirectory constructs a directory client against baseURL.
func NewHTTPDirectory(baseURL string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (d *HTTPDirectory) BulkUsers(ctx context.Context, ids []string) (map[string]Profile, error) {
	if len(ids) == 0 {
		return map[string]Profile{}, nil
	}

	endpoint := d.baseURL + "/internal/users?ids=" + url.QueryEscape(strings.Join(ids, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile service returned %d", resp.StatusCode)
	}

	var payload struct {
		Users []Profile `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	profiles := make(map[string]Profile, len(payload.Users))
	for _, p := range payload.Users {
		profiles[p.ID] = p
	}
	return profiles, nil
}

// StaticDirectory answers every lookup with a bare profile. Used when no
// profile service is configured, and in tests.
type StaticDirectory struct{}

func (StaticDirectory) BulkUsers(ctx context.Context, ids []string) (map[string]Profile, error) {
	profiles := make(map[string]Profile, len(ids))
	for _, id := range ids {
		profiles[id] = Profile{ID: id}
	}
	return profiles, nil
}

var _ Directory = (*HTTPDirectory)(nil)
var _ Directory = StaticDirectory{}
