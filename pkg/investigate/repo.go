package investigate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultGitHubAPI = "https://api.github.com"

// RepoInspector summarises a subject's GitHub repository: description, stars,
// recent commits and releases.
type RepoInspector struct {
	client  *http.Client
	token   string
	baseURL string
	// repos maps a project name to its repository URL or owner/repo slug.
	repos map[string]string
	demo  bool

	throttle *throttle
}

// NewRepoInspector creates an inspector. An empty baseURL uses the public
// GitHub API. In demo mode no requests are made.
func NewRepoInspector(token, baseURL string, repos map[string]string, demo bool) *RepoInspector {
	if baseURL == "" {
		baseURL = defaultGitHubAPI
	}
	return &RepoInspector{
		client:   &http.Client{Timeout: 10 * time.Second},
		token:    token,
		baseURL:  strings.TrimRight(baseURL, "/"),
		repos:    repos,
		demo:     demo,
		throttle: newThrottle(time.Second),
	}
}

func (r *RepoInspector) Name() string { return "repo_inspector" }

func (r *RepoInspector) Investigate(ctx context.Context, s Subject) Result {
	if r.demo {
		return r.demoResult(s)
	}

	slug := r.resolveSlug(s.Key)
	if slug == "" {
		return Result{
			Tool:    r.Name(),
			Input:   map[string]any{"entity_key": s.Key},
			Summary: fmt.Sprintf("No GitHub repository found for %s.", s.Label),
		}
	}

	res, err := r.inspect(ctx, slug)
	if err != nil {
		return Result{
			Tool:    r.Name(),
			Input:   map[string]any{"entity_key": s.Key},
			Summary: fmt.Sprintf("Error inspecting repo: %v", err),
		}
	}
	res.Input["entity_key"] = s.Key
	return res
}

// resolveSlug maps an entity key to owner/repo: a configured project whose
// hyphenated lowercase name occurs in the key, else the key itself when it
// already looks like a slug.
func (r *RepoInspector) resolveSlug(key string) string {
	names := make([]string, 0, len(r.repos))
	for name := range r.repos {
		names = append(names, name)
	}
	sort.Strings(names)

	lower := strings.ToLower(key)
	for _, name := range names {
		if strings.Contains(lower, strings.ReplaceAll(strings.ToLower(name), " ", "-")) {
			return strings.TrimPrefix(strings.TrimSuffix(r.repos[name], "/"), "https://github.com/")
		}
	}
	if strings.Contains(key, "/") && !strings.HasPrefix(key, "http") {
		return key
	}
	return ""
}

func (r *RepoInspector) inspect(ctx context.Context, slug string) (Result, error) {
	var repo ghRepo
	if err := r.get(ctx, "/repos/"+slug, &repo); err != nil {
		return Result{}, err
	}

	// Commits and releases are best effort.
	var commits []ghCommit
	_ = r.get(ctx, "/repos/"+slug+"/commits?per_page=5", &commits)
	var releases []ghRelease
	_ = r.get(ctx, "/repos/"+slug+"/releases?per_page=3", &releases)

	desc := repo.Description
	if desc == "" {
		desc = "No description"
	}

	var msgs []string
	for _, c := range commits[:min(3, len(commits))] {
		msg, _, _ := strings.Cut(c.Commit.Message, "\n")
		msgs = append(msgs, truncate(msg, 80))
	}
	var tags []string
	for _, rel := range releases[:min(3, len(releases))] {
		tags = append(tags, rel.TagName)
	}
	latest := strings.Join(tags, ", ")
	if latest == "" {
		latest = "none"
	}

	link := "https://github.com/" + slug
	if repo.HTMLURL != "" {
		link = repo.HTMLURL
	}

	return Result{
		Tool:  r.Name(),
		Input: map[string]any{"repo_slug": slug},
		Summary: fmt.Sprintf("Repository: %s: %s. Stars: %d, Forks: %d. Recent commits: %s. Latest releases: %s.",
			slug, desc, repo.Stars, repo.Forks, strings.Join(msgs, "; "), latest),
		Links: []string{link},
		Evidence: []Evidence{{
			Type:    "dev",
			Title:   "GitHub: " + slug,
			URL:     link,
			Snippet: fmt.Sprintf("%d stars, %d forks. %s", repo.Stars, repo.Forks, desc),
		}},
	}, nil
}

func (r *RepoInspector) get(ctx context.Context, path string, out any) error {
	if err := r.throttle.wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch github %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github API status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode github response: %w", err)
	}
	return nil
}

func (r *RepoInspector) demoResult(s Subject) Result {
	summary := fmt.Sprintf("Repository analysis for %s: active development with a consistent commit history. "+
		"Multiple contributors and recent releases indicate healthy project momentum.", s.Label)
	return Result{
		Tool:    r.Name(),
		Input:   map[string]any{"entity_key": s.Key},
		Summary: summary,
		Evidence: []Evidence{{
			Type:    "dev",
			Title:   "Repo inspection: " + s.Label,
			Snippet: truncate(summary, 200),
		}},
	}
}

type ghRepo struct {
	HTMLURL     string `json:"html_url"`
	Description string `json:"description"`
	Stars       int    `json:"stargazers_count"`
	Forks       int    `json:"forks_count"`
}

type ghCommit struct {
	Commit struct {
		Message string `json:"message"`
	} `json:"commit"`
}

type ghRelease struct {
	TagName string `json:"tag_name"`
}

// throttle spaces calls at least interval apart.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func newThrottle(interval time.Duration) *throttle {
	return &throttle{interval: interval}
}

func (t *throttle) wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if d := t.interval - time.Since(t.last); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	t.last = time.Now()
	return nil
}
