package git

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// Environment variables read by AuthFromEnv.
const (
	EnvToken    = "GARDENER_GIT_TOKEN"
	EnvUsername = "GARDENER_GIT_USERNAME"
	EnvPassword = "GARDENER_GIT_PASSWORD"
	EnvSSHKey   = "GARDENER_GIT_SSH_KEY"
)

// AuthFromEnv builds remote credentials from the environment. A nil method means the
// remote is reached without credentials (public HTTPS, local paths, ssh-agent).
func AuthFromEnv() (transport.AuthMethod, error) {
	switch {
	case os.Getenv(EnvToken) != "":
		return &http.BasicAuth{
			Username: "token", // GitHub/GitLab accept any username with a token
			Password: os.Getenv(EnvToken),
		}, nil

	case os.Getenv(EnvUsername) != "":
		if os.Getenv(EnvPassword) == "" {
			return nil, fmt.Errorf("%s is set but %s is empty", EnvUsername, EnvPassword)
		}
		return &http.BasicAuth{
			Username: os.Getenv(EnvUsername),
			Password: os.Getenv(EnvPassword),
		}, nil

	case os.Getenv(EnvSSHKey) != "":
		keyPath := os.Getenv(EnvSSHKey)
		publicKeys, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key from %s: %w", keyPath, err)
		}
		return publicKeys, nil

	default:
		return nil, nil
	}
}
