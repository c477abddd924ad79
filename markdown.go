package docmirror

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Markdown validation thresholds.
const (
	MinMarkdownLength  = 50
	MinChangelogLength = 100
	MarkdownScanLines  = 50
	MinMarkdownTokens  = 3
)

var markdownTokens = []string{
	"# ",
	"## ",
	"### ",
	"```",
	"- ",
	"* ",
	"1. ",
	"[",
	"**",
	"_",
	"> ",
}

var docKeywords = []string{
	"installation",
	"usage",
	"example",
	"api",
	"configuration",
	"claude",
	"code",
}

// ValidateMarkdown returns EINVALID if content does not look like a
// markdown document: HTML pages, very short bodies and bodies with fewer
// than MinMarkdownTokens markdown-looking lines are rejected.
func ValidateMarkdown(content string) error {
	head := content
	if len(head) > 100 {
		head = head[:100]
	}
	if content == "" || strings.HasPrefix(content, "<!DOCTYPE") || strings.Contains(head, "<html") {
		return Errorf(EINVALID, "received HTML instead of markdown")
	}

	if len(strings.TrimSpace(content)) < MinMarkdownLength {
		return Errorf(EINVALID, "content too short (%d bytes)", len(content))
	}

	lines := strings.Split(content, "\n")
	if len(lines) > MarkdownScanLines {
		lines = lines[:MarkdownScanLines]
	}
	count := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, tok := range markdownTokens {
			if strings.HasPrefix(trimmed, tok) || strings.Contains(line, tok) {
				count++
				break
			}
		}
	}
	if count < MinMarkdownTokens {
		return Errorf(EINVALID, "content doesn't appear to be markdown (only %d markdown indicators found)", count)
	}
	return nil
}

// HasDocKeywords reports whether content mentions any of the keywords
// expected in documentation, ignoring case.
func HasDocKeywords(content string) bool {
	lower := strings.ToLower(content)
	for _, kw := range docKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ValidateChangelog returns EINVALID if the changelog body is too short.
func ValidateChangelog(content string) error {
	if len(strings.TrimSpace(content)) < MinChangelogLength {
		return Errorf(EINVALID, "changelog content too short (%d bytes)", len(content))
	}
	return nil
}

// ChangelogHeader returns the banner prepended to the mirrored changelog.
func ChangelogHeader(sourceURL string) string {
	return "# Claude Code Changelog\n\n" +
		"> **Source**: " + sourceURL + "\n" +
		"> \n" +
		"> This is the official Claude Code release changelog, automatically fetched from the Claude Code repository. For documentation, see other topics via `/docs`.\n\n" +
		"---\n\n"
}

// ContentHash returns the hex-encoded SHA-256 digest of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Filename maps a documentation page path to its output filename.
//
// The first matching prefix is stripped; otherwise everything up to the last
// marker is dropped. Remaining path separators become "__" so nested pages
// stay distinct in a flat directory. Example:
//
//	/en/docs/claude-code/advanced/setup → advanced__setup.md
func Filename(path string, prefixes []string, marker string) string {
	name := path
	matched := false
	for _, p := range prefixes {
		if strings.Contains(path, p) {
			name = path[strings.LastIndex(path, p)+len(p):]
			matched = true
			break
		}
	}
	if !matched && marker != "" && strings.Contains(path, marker) {
		name = path[strings.LastIndex(path, marker)+len(marker):]
	}

	if strings.Contains(name, "/") {
		name = strings.ReplaceAll(name, "/", "__")
	}
	if !strings.HasSuffix(name, ".md") {
		name += ".md"
	}
	return name
}
