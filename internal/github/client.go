// Package github is a minimal GitHub REST client covering what a review run
// needs: pull-request metadata, precomputed ofborg evaluation results, and
// posting result comments. Authentication is a bearer token resolved from
// the CLI flag or environment.
package github

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/nix-community/nixpkgs-review/internal/errors"
)

// Client talks to the GitHub API for one repository.
type Client struct {
	httpClient *http.Client
	token      string
	owner      string
	repo       string

	// Overridable in tests.
	apiBase  string
	gistBase string
}

// NewClient creates a Client for the repository the remote URL points at.
func NewClient(token, remote string) (*Client, error) {
	owner, repo, err := parseRemote(remote)
	if err != nil {
		return nil, err
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      token,
		owner:      owner,
		repo:       repo,
		apiBase:    "https://api.github.com",
		gistBase:   "https://gist.githubusercontent.com",
	}, nil
}

// parseRemote extracts owner and repository from a GitHub remote URL.
func parseRemote(remote string) (string, string, error) {
	u, err := url.Parse(remote)
	if err != nil {
		return "", "", fmt.Errorf("invalid remote URL %q: %w", remote, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("remote URL %q does not name a repository", remote)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// Token resolves the GitHub API token: explicit flag value first, then the
// conventional environment variables.
func Token(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	for _, name := range []string{"GITHUB_TOKEN", "GITHUB_OAUTH_TOKEN"} {
		if tok := os.Getenv(name); tok != "" {
			return tok
		}
	}
	return ""
}

// PullRequest is the subset of PR metadata the review pipeline consumes.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HeadSHA string
	BaseRef string
}

func (c *Client) get(path string, into any) error {
	req, err := http.NewRequest(http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", path, errors.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("GET %s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(into)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
}

// GetPullRequest fetches metadata for one PR.
func (c *Client) GetPullRequest(number int) (*PullRequest, error) {
	var raw struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		Head   struct {
			SHA string `json:"sha"`
		} `json:"head"`
		Base struct {
			Ref string `json:"ref"`
		} `json:"base"`
	}
	if err := c.get(fmt.Sprintf("/repos/%s/%s/pulls/%d", c.owner, c.repo, number), &raw); err != nil {
		return nil, err
	}
	return &PullRequest{
		Number:  raw.Number,
		Title:   raw.Title,
		HeadSHA: raw.Head.SHA,
		BaseRef: raw.Base.Ref,
	}, nil
}

// PostComment posts a review report as a comment on the PR.
func (c *Client) PostComment(number int, body string) error {
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", c.owner, c.repo, number)
	req, err := http.NewRequest(http.MethodPost, c.apiBase+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("POST %s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// ofborgGistUser hosts the evaluation result gists.
const ofborgGistUser = "GrahamcOfBorg"

// OfborgEval fetches the precomputed evaluation result for the PR's head
// commit: the set of changed attrs per system, published by ofborg as a
// gist linked from a commit status. Returns ErrNoEvalResult when ofborg has
// not (yet) evaluated the commit.
func (c *Client) OfborgEval(headSHA string) (map[string][]string, error) {
	var statuses []struct {
		Description string `json:"description"`
		TargetURL   string `json:"target_url"`
		Creator     struct {
			Login string `json:"login"`
		} `json:"creator"`
	}
	if err := c.get(fmt.Sprintf("/repos/%s/%s/commits/%s/statuses", c.owner, c.repo, headSHA), &statuses); err != nil {
		return nil, err
	}

	for _, status := range statuses {
		// ofborg marks a finished evaluation with this description.
		if status.Description != "^.^!" || status.Creator.Login != "ofborg[bot]" || status.TargetURL == "" {
			continue
		}
		u, err := url.Parse(status.TargetURL)
		if err != nil {
			continue
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		gistHash := parts[len(parts)-1]
		return c.fetchEvalGist(gistHash)
	}

	return nil, errors.ErrNoEvalResult
}

// fetchEvalGist downloads and parses the raw eval gist: one "system attr"
// pair per line.
func (c *Client) fetchEvalGist(gistHash string) (map[string][]string, error) {
	rawURL := fmt.Sprintf("%s/%s/%s/raw/", c.gistBase, ofborgGistUser, gistHash)
	resp, err := c.httpClient.Get(rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	packages := make(map[string][]string)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		system, attr := fields[0], fields[1]
		packages[system] = append(packages[system], attr)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return packages, nil
}
