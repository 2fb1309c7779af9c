package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DefaultLoginPath is the password login route of the platform API.
const DefaultLoginPath = "/api/auth/login"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges email and password for a token pair and stores it. It
// never refreshes: a 401 here means the password is wrong.
func (c *Client) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	payload, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("encode login request: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, DefaultLoginPath, "application/json", payload, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out refreshResponse
	if err := decodeResponse(resp, http.MethodPost, DefaultLoginPath, &out); err != nil {
		return err
	}
	token := out.Token
	if token == "" {
		token = out.AccessToken
	}
	if token == "" {
		return fmt.Errorf("login response carried no token")
	}
	if err := c.creds.Update(token, out.RefreshToken); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	return nil
}
