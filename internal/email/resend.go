package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultTimeout = 15 * time.Second

// ResendClient sends mail via the Resend HTTP API (https://resend.com/docs/api-reference).
type ResendClient struct {
	APIKey     string
	BaseURL    string
	From       string
	AppBaseURL string
	HTTPClient *http.Client
}

// NewResendClient returns a client that uses the given API key and optional base URL.
// appBaseURL is the public web app URL used to build redemption links.
func NewResendClient(apiKey, baseURL, from, appBaseURL string) *ResendClient {
	if baseURL == "" {
		baseURL = "https://api.resend.com/emails"
	}
	return &ResendClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		From:       from,
		AppBaseURL: appBaseURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Send renders the template and posts it to the provider. Does not log the approval token.
func (c *ResendClient) Send(ctx context.Context, toEmail, templateID string, vars map[string]string) error {
	if c.APIKey == "" {
		return fmt.Errorf("email: API key not configured")
	}
	subject, html, err := c.render(templateID, vars)
	if err != nil {
		return err
	}
	body := map[string]any{
		"from":    c.From,
		"to":      []string{toEmail},
		"subject": subject,
		"html":    html,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("email: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

func (c *ResendClient) render(templateID string, vars map[string]string) (subject, html string, err error) {
	switch templateID {
	case TemplateInvite:
		q := url.Values{}
		q.Set("email", vars["email"])
		q.Set("token", vars["token"])
		link := c.AppBaseURL + "/early-access?" + q.Encode()
		subject = "Your Quillaborn early access invite"
		html = fmt.Sprintf(
			`<p>Your spot on the Quillaborn waitlist was approved.</p>
<p><a href="%s">Claim your early access</a> with this address to get started.</p>
<p>The link is single-use; if it has already been used, sign in instead.</p>`, link)
		return subject, html, nil
	default:
		return "", "", fmt.Errorf("email: unknown template %q", templateID)
	}
}
