package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPI = "https://api.github.com"

// githubUser is the portion of the GitHub /user API response we care about.
//
// GitHub API docs: https://docs.github.com/en/rest/users/users#get-the-authenticated-user
type githubUser struct {
	ID    int64  `json:"id"`    // stable, never changes
	Login string `json:"login"` // username, may be renamed
	Name  string `json:"name"`  // free-form full name, often empty
	Email string `json:"email"` // public email (empty if hidden)
}

// githubEmail is one entry of GET /user/emails.
type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
// 1. Your server redirects the user to GitHub's authorization endpoint,
//    with your ClientID and the requested scopes.
// 2. The user approves (or denies) the authorization request on GitHub.
// 3. GitHub redirects back to your CallbackURL with a short-lived "code".
// 4. Your server exchanges the code for an access token (server-to-server call).
// 5. Your server uses the access token to call the GitHub API for user info.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
	logger  *slog.Logger
}

// NewGitHubProvider creates a GitHubProvider with the given credentials.
//
// Scopes we request:
//   - "read:user": access to the user's public profile (ID, login, name)
//   - "user:email": access to the user's email addresses, including private ones
func NewGitHubProvider(clientID, clientSecret, callbackURL string, logger *slog.Logger) *GitHubProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase: githubAPI,
		logger:  logger,
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
// state is echoed back on the callback and checked against a cookie (CSRF).
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for the principal's profile.
//
// Steps:
//  1. Exchange the code for an OAuth access token (server-to-server)
//  2. GET /user for the stable numeric id and the name
//  3. GET /user/emails for verified addresses, primary first. If that call
//     fails it is logged and the public profile e-mail is used instead.
//
// The login is used as the first name only when GitHub gives neither a name
// nor an e-mail, so a display name can still fall back to the address.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*ProviderUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// The returned client adds "Authorization: Bearer <token>" to every request.
	client := p.config.Client(ctx, oauthToken)

	var gh githubUser
	if err := p.getJSON(ctx, client, "/user", &gh); err != nil {
		return nil, err
	}
	if gh.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	subject := "github|" + strconv.FormatInt(gh.ID, 10)

	var emails []githubEmail
	if err := p.getJSON(ctx, client, "/user/emails", &emails); err != nil {
		p.logger.Warn("GitHub e-mail lookup failed, using public address",
			"subject", subject, "error", err)
		emails = nil
	}
	addresses := orderEmails(emails, gh.Email)

	first, last := splitName(gh.Name)
	if first == "" && len(addresses) == 0 {
		first = gh.Login
	}

	return &ProviderUser{
		SubjectID:      subject,
		EmailAddresses: addresses,
		FirstName:      first,
		LastName:       last,
	}, nil
}

func (p *GitHubProvider) getJSON(ctx context.Context, client *http.Client, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("auth: building GitHub %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling GitHub %s API: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: GitHub %s API returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("auth: decoding GitHub %s response: %w", path, err)
	}
	return nil
}

// orderEmails keeps verified addresses only, primary first. An empty result
// falls back to the public profile address.
func orderEmails(emails []githubEmail, fallback string) []string {
	var primary, rest []string
	for _, e := range emails {
		if !e.Verified || e.Email == "" {
			continue
		}
		if e.Primary {
			primary = append(primary, e.Email)
		} else {
			rest = append(rest, e.Email)
		}
	}
	out := append(primary, rest...)
	if len(out) == 0 && fallback != "" {
		out = []string{fallback}
	}
	return out
}

func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	first, last, _ = strings.Cut(full, " ")
	return first, strings.TrimSpace(last)
}
