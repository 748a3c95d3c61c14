package git

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/jayteealao/gitsvc/internal/auth"
	"github.com/jayteealao/gitsvc/internal/errors"
	"golang.org/x/crypto/ssh"
)

// authMethod builds the transport credentials for url.
func (m *Manager) authMethod(url string, creds *auth.Credentials) (transport.AuthMethod, error) {
	ep, err := transport.NewEndpoint(url)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid remote url: %v", errors.ErrInvalidArgument, err)
	}

	switch ep.Protocol {
	case "http", "https":
		if creds.IsZero() {
			if ep.User != "" {
				return &githttp.BasicAuth{Username: ep.User, Password: ep.Password}, nil
			}
			return nil, nil
		}
		return &githttp.BasicAuth{Username: creds.Username, Password: creds.Password}, nil
	case "ssh":
		return m.sshAuth(ep, creds)
	default:
		return nil, nil
	}
}

func (m *Manager) sshAuth(ep *transport.Endpoint, creds *auth.Credentials) (transport.AuthMethod, error) {
	user := ep.User
	if user == "" {
		user = m.opts.SSHUser
	}

	keyPath := m.opts.SSHKeyPath
	if keyPath == "" {
		keyPath = defaultSSHKey()
	}
	if keyPath == "" {
		// Let go-git fall back to ssh-agent
		return nil, nil
	}

	pem, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh key: %w", err)
	}

	var passphrase string
	if creds != nil {
		passphrase = creds.Passphrase
	}

	if passphrase == "" {
		if _, err := ssh.ParseRawPrivateKey(pem); err != nil {
			var missing *ssh.PassphraseMissingError
			if stderrors.As(err, &missing) {
				return nil, passphraseChallenge(ep.Host, fmt.Errorf("%w: ssh key %s is passphrase protected", errors.ErrAuthRequired, keyPath))
			}
			return nil, fmt.Errorf("failed to parse ssh key %s: %w", keyPath, err)
		}
	}

	keys, err := gitssh.NewPublicKeys(user, pem, passphrase)
	if err != nil {
		if passphrase != "" {
			return nil, passphraseChallenge(ep.Host, fmt.Errorf("%w: ssh key passphrase rejected: %v", errors.ErrAuthRequired, err))
		}
		return nil, fmt.Errorf("failed to load ssh key %s: %w", keyPath, err)
	}
	return keys, nil
}

// defaultSSHKey returns the first conventional private key that exists.
func defaultSSHKey() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		p := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func passwordChallenge(remote string, err error) error {
	return &auth.ChallengeError{Challenge: auth.NewChallenge(auth.KindPassword, remote), Err: err}
}

func passphraseChallenge(remote string, err error) error {
	return &auth.ChallengeError{Challenge: auth.NewChallenge(auth.KindPassphrase, remote), Err: err}
}

// classifyRemoteError maps transport failures onto the error taxonomy.
// Authentication failures become challenges; the challenge kind follows the
// remote protocol (password for http, passphrase for ssh).
func classifyRemoteError(ctx context.Context, url string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := auth.AsChallenge(err); ok {
		return err
	}
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", errors.ErrRemoteTimeout, err)
	}
	if stderrors.Is(err, context.Canceled) {
		return fmt.Errorf("remote operation cancelled: %w", err)
	}

	host, protocol := remoteHost(url)
	if isAuthFailure(err) {
		wrapped := fmt.Errorf("%w: %v", errors.ErrAuthRequired, err)
		if protocol == "ssh" {
			return passphraseChallenge(host, wrapped)
		}
		return passwordChallenge(host, wrapped)
	}

	if stderrors.Is(err, transport.ErrRepositoryNotFound) {
		return fmt.Errorf("%w: repository not found: %s", errors.ErrRemoteUnreachable, url)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", errors.ErrRemoteTimeout, err)
	}
	return fmt.Errorf("%w: %w", errors.ErrRemoteUnreachable, err)
}

func isAuthFailure(err error) bool {
	if stderrors.Is(err, transport.ErrAuthenticationRequired) ||
		stderrors.Is(err, transport.ErrAuthorizationFailed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "authentication failed") ||
		strings.Contains(msg, "authentication required") ||
		strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "could not read username")
}

func remoteHost(url string) (host, protocol string) {
	ep, err := transport.NewEndpoint(url)
	if err != nil {
		return "", ""
	}
	return ep.Host, ep.Protocol
}
