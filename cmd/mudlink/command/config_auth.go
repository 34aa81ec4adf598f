package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-mudlink/internal/auth"
)

type AuthConfig struct {
	// Secret signs session tokens. When empty an ephemeral key is
	// generated and tokens stop working across restarts.
	Secret      string `json:"secret,omitempty"`
	TokenExpiry string `json:"token_expiry,omitempty"`
}

func (c *AuthConfig) Validate() error {
	el := errors.NewErrorList()

	if c.TokenExpiry != "" {
		d, err := time.ParseDuration(c.TokenExpiry)
		if err != nil {
			el.Add(fmt.Errorf("parsing token_expiry: %w", err))
		} else if d <= 0 {
			el.Add(fmt.Errorf("token_expiry must be positive"))
		}
	}

	return el.Err()
}

func (c *AuthConfig) BuildAuthenticator(dir auth.Directory) (*auth.Authenticator, error) {
	var expiry time.Duration
	if c.TokenExpiry != "" {
		d, err := time.ParseDuration(c.TokenExpiry)
		if err != nil {
			return nil, fmt.Errorf("parsing token_expiry: %w", err)
		}
		expiry = d
	}

	return auth.NewAuthenticator(c.Secret, expiry, dir), nil
}
