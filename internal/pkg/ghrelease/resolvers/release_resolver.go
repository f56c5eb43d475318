// Package resolvers implements the three decision stages of a GitHub release
// install: which tag, which asset, and which archive members are the
// requested binaries.
package resolvers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"regexp"
	"strings"

	"github.com/devcontainers-contrib/nanolayer/internal/pkg/natsort"
	"github.com/devcontainers-contrib/nanolayer/internal/pkg/nerrors"
)

var tagRefRe = regexp.MustCompile(`tags/([0-9A-Za-z\-_|.]+)$`)

// ReleaseResolver turns a user-supplied version ("latest" or an explicit tag)
// into a concrete, existing release tag for repo.
type ReleaseResolver struct {
	HTTPClient *http.Client
}

// NewReleaseResolver returns a ReleaseResolver using http.DefaultClient.
func NewReleaseResolver() *ReleaseResolver {
	return &ReleaseResolver{HTTPClient: http.DefaultClient}
}

// Resolve implements the algorithm in the installer's release-resolution
// stage: "latest" picks the natural-order maximum of the repo's tags
// (optionally narrowed by tagRegex); anything else must appear verbatim or
// with a "v" prefix among the repo's tags.
func (r *ReleaseResolver) Resolve(ctx context.Context, repo, askedVersion, tagRegex string, useAPI bool) (string, error) {
	tags, err := r.listTags(ctx, repo, useAPI)
	if err != nil {
		return "", err
	}
	if tagRegex != "" {
		re, err := regexp.Compile(tagRegex)
		if err != nil {
			return "", &nerrors.UsageError{Msg: "invalid tag regex: " + err.Error()}
		}
		tags = filterMatching(tags, re)
	}
	if len(tags) == 0 {
		return "", nerrors.NewReleaseNotFound(fmt.Sprintf("no tags found for %s", repo))
	}

	if askedVersion == "" || askedVersion == "latest" {
		natsort.SortDescending(tags)
		return tags[0], nil
	}

	for _, t := range tags {
		if t == askedVersion || t == "v"+askedVersion {
			return t, nil
		}
	}
	return "", nerrors.NewReleaseNotFound(fmt.Sprintf("tag %q not found for %s", askedVersion, repo))
}

// listTags prefers `git ls-remote --tags`, the fast path used whenever a git
// binary is present and the caller hasn't asked for the GitHub API (which is
// rate-limited for anonymous callers); it falls back to the API otherwise.
func (r *ReleaseResolver) listTags(ctx context.Context, repo string, useAPI bool) ([]string, error) {
	if !useAPI {
		if _, err := exec.LookPath("git"); err == nil {
			tags, err := r.listTagsViaGit(ctx, repo)
			if err == nil {
				return tags, nil
			}
		}
	}
	return r.listTagsViaAPI(ctx, repo)
}

func (r *ReleaseResolver) listTagsViaGit(ctx context.Context, repo string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-remote", "--tags", "https://github.com/"+repo)
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	var tags []string
	for _, line := range strings.Split(string(out), "\n") {
		m := tagRefRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		tag := m[1]
		stripped := strings.TrimPrefix(tag, "v")
		if stripped == "" || !isAlnum(stripped[0]) {
			continue
		}
		// Annotated tags appear twice (refname and refname^{}); de-dup.
		if !contains(tags, tag) {
			tags = append(tags, tag)
		}
	}
	return tags, nil
}

func (r *ReleaseResolver) listTagsViaAPI(ctx context.Context, repo string) ([]string, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/releases", repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, &nerrors.ResolveError{Kind: "ReleaseNotFound", Msg: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, nerrors.NewReleaseNotFound(fmt.Sprintf("github api returned %d: %s", resp.StatusCode, string(body)))
	}

	var releases []struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, nerrors.NewReleaseNotFound("malformed releases response: " + err.Error())
	}
	tags := make([]string, 0, len(releases))
	for _, rel := range releases {
		tags = append(tags, rel.TagName)
	}
	return tags, nil
}

func filterMatching(tags []string, re *regexp.Regexp) []string {
	var out []string
	for _, t := range tags {
		if re.MatchString(t) {
			out = append(out, t)
		}
	}
	return out
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func isAlnum(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
