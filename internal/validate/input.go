// Package validate checks command arguments before any repository is touched.
package validate

import (
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/jayteealao/gitsvc/internal/errors"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errors.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Revision validates a revision expression (branch, tag, SHA, optionally
// with ~ or ^ suffixes).
func Revision(rev string) error {
	if rev == "" {
		return invalid("revision cannot be empty")
	}

	for _, char := range []string{" ", "\t", "\n", "\r", ":", "?", "*", "[", "\\"} {
		if strings.Contains(rev, char) {
			return invalid("revision contains invalid character: %q", char)
		}
	}

	// Range notation is not a single revision
	if strings.Contains(rev, "..") {
		return invalid("revision cannot contain '..'")
	}
	if strings.HasPrefix(rev, "-") {
		return invalid("revision cannot start with '-'")
	}

	return nil
}

// BranchName validates a new branch name following git's ref format rules.
func BranchName(name string) error {
	if name == "" {
		return invalid("branch name cannot be empty")
	}
	if err := Revision(name); err != nil {
		return err
	}

	for _, char := range []string{"~", "^", "@{"} {
		if strings.Contains(name, char) {
			return invalid("branch name contains invalid character: %q", char)
		}
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return invalid("branch name contains control character")
		}
	}

	switch {
	case name == "@", name == "HEAD":
		return invalid("%q is not a valid branch name", name)
	case strings.HasPrefix(name, "/"), strings.HasSuffix(name, "/"), strings.Contains(name, "//"):
		return invalid("branch name has empty path component")
	case strings.HasSuffix(name, "."), strings.HasSuffix(name, ".lock"):
		return invalid("branch name cannot end with '.' or '.lock'")
	}
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return invalid("branch name component cannot start with '.'")
		}
	}

	return nil
}

// RepoURL validates a clone source: an http(s), git, ssh or file URL, an
// scp-style address (user@host:path), or an existing local directory.
func RepoURL(rawURL string) error {
	if rawURL == "" {
		return invalid("repository URL cannot be empty")
	}

	// scp-like SSH format (git@host:path)
	if isSCPLike(rawURL) {
		parts := strings.SplitN(rawURL, ":", 2)
		if parts[1] == "" {
			return invalid("invalid SSH URL format: missing path")
		}
		return nil
	}
	if strings.HasPrefix(rawURL, "git@") {
		return invalid("invalid SSH URL format: missing ':'")
	}

	if !IsURL(rawURL) {
		return localRepo(rawURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return invalid("invalid URL: %v", err)
	}

	switch u.Scheme {
	case "http", "https", "git", "ssh":
		if u.Host == "" {
			return invalid("URL missing host")
		}
	case "file":
		if u.Path == "" {
			return invalid("file URL missing path")
		}
	default:
		return invalid("unsupported URL scheme: %s (use http, https, git, ssh, file, or SSH format)", u.Scheme)
	}

	return nil
}

func isSCPLike(s string) bool {
	at := strings.Index(s, "@")
	colon := strings.Index(s, ":")
	slash := strings.Index(s, "/")
	return at > 0 && colon > at && (slash < 0 || colon < slash)
}

func localRepo(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return invalid("failed to expand path: %v", err)
	}
	if !filepath.IsAbs(expanded) {
		return invalid("local repository path must be absolute: %s", path)
	}
	info, err := os.Stat(expanded)
	if err != nil || !info.IsDir() {
		return invalid("local repository not found: %s", path)
	}
	return nil
}

// IsURL returns true if the input looks like a URL rather than a local path.
func IsURL(input string) bool {
	return isSCPLike(input) || strings.Contains(input, "://")
}

// CommitMessage validates a commit message.
func CommitMessage(msg string) error {
	if strings.TrimSpace(msg) == "" {
		return invalid("commit message cannot be empty")
	}
	return nil
}

// Email validates a bare email address.
func Email(addr string) error {
	a, err := mail.ParseAddress(addr)
	if err != nil || a.Address != addr {
		return invalid("invalid email address: %q", addr)
	}
	return nil
}

// RepoFile validates a path given for staging. It must stay inside the
// working tree.
func RepoFile(path string) error {
	if path == "" {
		return invalid("file path cannot be empty")
	}
	if filepath.IsAbs(path) {
		return invalid("file path must be relative to the repository: %s", path)
	}
	clean := filepath.ToSlash(filepath.Clean(path))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return invalid("file path escapes the repository: %s", path)
	}
	if clean == ".git" || strings.HasPrefix(clean, ".git/") {
		return invalid("file path points into repository metadata: %s", path)
	}
	return nil
}

// WorkspacePath resolves a repository root to a clean absolute path.
func WorkspacePath(path string) (string, error) {
	if path == "" {
		return "", invalid("repository path cannot be empty")
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", invalid("failed to expand path: %v", err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", invalid("failed to resolve path: %v", err)
	}
	return abs, nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
