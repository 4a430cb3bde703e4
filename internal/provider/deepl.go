package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	deeplFreeURL = "https://api-free.deepl.com/v2/translate"
	deeplProURL  = "https://api.deepl.com/v2/translate"
)

// DeepL ignores prompt and glossary; the API needs a separately managed
// glossary resource for term enforcement.
type DeepL struct {
	apiKey     string
	endpoint   string
	targetLang string
	httpClient *http.Client
}

func NewDeepL(s Settings) (Provider, error) {
	if err := requireKey(s); err != nil {
		return nil, err
	}
	endpoint := s.BaseURL
	if endpoint == "" {
		endpoint = deeplProURL
		// free-tier keys end in ":fx"
		if strings.HasSuffix(s.APIKey, ":fx") {
			endpoint = deeplFreeURL
		}
	}
	target := strings.ToUpper(strings.TrimSpace(s.TargetLang))
	if target == "" {
		target = "EN"
	}
	return &DeepL{
		apiKey:     s.APIKey,
		endpoint:   endpoint,
		targetLang: target,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSeconds(s.Timeout)) * time.Second},
	}, nil
}

func (d *DeepL) Name() string { return "deepl" }

type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

func (d *DeepL) Translate(ctx context.Context, text, _ string, _ map[string]string) (string, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", d.targetLang)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", newError(d.Name(), err, "create request")
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", newError(d.Name(), err, "connection error")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newError(d.Name(), err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newError(d.Name(), nil, "API error (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	var payload deeplResponse
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Translations) == 0 {
		return "", newError(d.Name(), err, "unexpected response format")
	}
	return payload.Translations[0].Text, nil
}
