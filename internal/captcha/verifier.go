package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hashhost/internal/config"
	"hashhost/internal/util"
)

var (
	ErrCaptchaRequired    = errors.New("captcha_required")
	ErrCaptchaUnavailable = errors.New("captcha_unavailable")
)

// Verifier checks the challenge token a visitor submits with a public form.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

type NoopVerifier struct{}

func (NoopVerifier) Verify(ctx context.Context, token, remoteIP string) error { return nil }

type HTTPVerifier struct {
	provider  string
	verifyURL string
	secret    string
	client    *http.Client
}

func NewVerifier(cfg config.Config) Verifier {
	if !cfg.CaptchaEnabled {
		return NoopVerifier{}
	}
	return &HTTPVerifier{
		provider:  strings.ToLower(strings.TrimSpace(cfg.CaptchaProvider)),
		verifyURL: strings.TrimSpace(cfg.CaptchaVerifyURL),
		secret:    strings.TrimSpace(cfg.CaptchaSecret),
		client:    &http.Client{Timeout: 8 * time.Second},
	}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Error      string   `json:"error"`
	Message    string   `json:"message"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: captcha token is required", ErrCaptchaRequired)
	}
	req, err := v.buildRequest(ctx, token, strings.TrimSpace(remoteIP))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptchaUnavailable, err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptchaUnavailable, err)
	}
	defer resp.Body.Close()
	return classify(resp.StatusCode, resp.Body, v.provider == "cap")
}

// buildRequest encodes the siteverify call. Turnstile and hCaptcha take a
// form post; Cap takes JSON.
func (v *HTTPVerifier) buildRequest(ctx context.Context, token, remoteIP string) (*http.Request, error) {
	switch v.provider {
	case "", "turnstile", "hcaptcha":
		form := url.Values{"secret": {v.secret}, "response": {token}}
		if remoteIP != "" {
			form.Set("remoteip", remoteIP)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	case "cap":
		payload := map[string]string{"secret": v.secret, "response": token}
		if remoteIP != "" {
			payload["remoteip"] = remoteIP
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
	return nil, fmt.Errorf("unsupported captcha provider %q", v.provider)
}

func classify(status int, body io.Reader, strictStatus bool) error {
	switch {
	case status >= 500, strictStatus && (status < 200 || status >= 300):
		return fmt.Errorf("%w: captcha verify HTTP %d", ErrCaptchaUnavailable, status)
	case status < 200 || status >= 300:
		return fmt.Errorf("%w: captcha verify HTTP %d", ErrCaptchaRequired, status)
	}
	var out verifyResponse
	if err := json.NewDecoder(io.LimitReader(body, 64<<10)).Decode(&out); err != nil {
		return fmt.Errorf("%w: %v", ErrCaptchaUnavailable, err)
	}
	if out.Success {
		return nil
	}
	for _, reason := range []string{out.Error, out.Message, strings.Join(out.ErrorCodes, ",")} {
		if reason = strings.TrimSpace(reason); reason != "" {
			return fmt.Errorf("%w: captcha rejected: %s", ErrCaptchaRequired, reason)
		}
	}
	return fmt.Errorf("%w: captcha rejected", ErrCaptchaRequired)
}

// AsStatusError maps a verification failure onto the response the public
// form endpoints send.
func AsStatusError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCaptchaRequired):
		return &util.StatusError{Status: http.StatusBadRequest, Code: "captcha_required", Message: "captcha verification failed", Err: err}
	case errors.Is(err, ErrCaptchaUnavailable):
		return &util.StatusError{Status: http.StatusServiceUnavailable, Code: "captcha_unavailable", Message: "captcha verification is unavailable", Err: err}
	}
	return err
}
