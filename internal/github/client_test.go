package github

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/nix-community/nixpkgs-review/internal/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("test-token", "https://github.com/NixOS/nixpkgs")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	client.apiBase = server.URL
	client.gistBase = server.URL + "/gist"
	return client
}

func TestParseRemote(t *testing.T) {
	tests := []struct {
		remote  string
		owner   string
		repo    string
		wantErr bool
	}{
		{"https://github.com/NixOS/nixpkgs", "NixOS", "nixpkgs", false},
		{"https://github.com/NixOS/nixpkgs.git", "NixOS", "nixpkgs", false},
		{"https://github.com/someone/fork/", "someone", "fork", false},
		{"https://github.com/", "", "", true},
		{"://bad", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			owner, repo, err := parseRemote(tt.remote)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRemote(%q) error = %v, wantErr %v", tt.remote, err, tt.wantErr)
			}
			if owner != tt.owner || repo != tt.repo {
				t.Errorf("parseRemote(%q) = %s/%s, want %s/%s", tt.remote, owner, repo, tt.owner, tt.repo)
			}
		})
	}
}

func TestToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "from-env")
	t.Setenv("GITHUB_OAUTH_TOKEN", "from-oauth-env")

	if got := Token("from-flag"); got != "from-flag" {
		t.Errorf("Token() = %q, want flag value to win", got)
	}
	if got := Token(""); got != "from-env" {
		t.Errorf("Token() = %q, want GITHUB_TOKEN", got)
	}

	t.Setenv("GITHUB_TOKEN", "")
	if got := Token(""); got != "from-oauth-env" {
		t.Errorf("Token() = %q, want GITHUB_OAUTH_TOKEN fallback", got)
	}
}

func TestGetPullRequest(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/NixOS/nixpkgs/pulls/12345" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "token test-token" {
			t.Errorf("Authorization = %q, want token header", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"number": 12345,
			"title":  "firefox: 129 -> 130",
			"head":   map[string]string{"sha": "deadbeef"},
			"base":   map[string]string{"ref": "master"},
		})
	}))

	pr, err := client.GetPullRequest(12345)
	if err != nil {
		t.Fatalf("GetPullRequest() error = %v", err)
	}
	if pr.Number != 12345 || pr.Title != "firefox: 129 -> 130" {
		t.Errorf("PR = %+v, want decoded metadata", pr)
	}
	if pr.HeadSHA != "deadbeef" || pr.BaseRef != "master" {
		t.Errorf("PR = %+v, want head/base extracted", pr)
	}
}

func TestGetPullRequest_NotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetPullRequest(1)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestOfborgEval(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/NixOS/nixpkgs/commits/deadbeef/statuses", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"description": "checking eval",
				"target_url":  "https://example.com/irrelevant",
				"creator":     map[string]string{"login": "other-ci"},
			},
			{
				"description": "^.^!",
				"target_url":  "https://gist.github.com/GrahamcOfBorg/abc123",
				"creator":     map[string]string{"login": "ofborg[bot]"},
			},
		})
	})
	mux.HandleFunc("/gist/GrahamcOfBorg/abc123/raw/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "x86_64-linux firefox\nx86_64-linux python3Packages.requests\naarch64-linux firefox\n")
	})

	client := newTestClient(t, mux)
	packages, err := client.OfborgEval("deadbeef")
	if err != nil {
		t.Fatalf("OfborgEval() error = %v", err)
	}

	want := map[string][]string{
		"x86_64-linux":  {"firefox", "python3Packages.requests"},
		"aarch64-linux": {"firefox"},
	}
	if !reflect.DeepEqual(packages, want) {
		t.Errorf("OfborgEval() = %v, want %v", packages, want)
	}
}

func TestOfborgEval_NoResult(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{})
	}))

	_, err := client.OfborgEval("deadbeef")
	if !errors.Is(err, errors.ErrNoEvalResult) {
		t.Errorf("error = %v, want ErrNoEvalResult", err)
	}
}

func TestPostComment(t *testing.T) {
	var posted map[string]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/NixOS/nixpkgs/issues/7/comments" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&posted)
		w.WriteHeader(http.StatusCreated)
	}))

	if err := client.PostComment(7, "1 package built"); err != nil {
		t.Fatalf("PostComment() error = %v", err)
	}
	if posted["body"] != "1 package built" {
		t.Errorf("posted body = %q, want report text", posted["body"])
	}
}
