package dingtalk

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/ports"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/resilience"
)

// Notifier posts rendered messages to a DingTalk group-robot webhook,
// signing each request when a secret is configured.
type Notifier struct {
	client     *http.Client
	webhookURL string
	secret     string
	now        func() time.Time
}

var _ ports.Sender = (*Notifier)(nil)

func New(webhookURL, secret string) *Notifier {
	return &Notifier{
		client:     &http.Client{Timeout: 15 * time.Second},
		webhookURL: webhookURL,
		secret:     secret,
		now:        time.Now,
	}
}

func (n *Notifier) Platform() domain.Platform {
	return domain.PlatformDingtalk
}

func (n *Notifier) Send(ctx context.Context, msg domain.RenderedMessage) error {
	return n.post(ctx, msg.Payload)
}

func (n *Notifier) SendTest(ctx context.Context) error {
	payload, err := json.Marshal(map[string]any{
		"msgtype": "text",
		"text": map[string]string{
			"content": "🎉 Intelligence Agent 测试消息，webhook 配置正常！",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal test message: %w", err)
	}
	return n.post(ctx, payload)
}

func (n *Notifier) post(ctx context.Context, payload []byte) error {
	target, err := n.signedURL()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return &resilience.StatusError{Code: resp.StatusCode}
	}

	var result struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("webhook rejected message: errcode %d: %s", result.ErrCode, result.ErrMsg)
	}
	return nil
}

// signedURL appends the timestamp and HMAC-SHA256 signature that DingTalk
// requires for secret-protected robots.
func (n *Notifier) signedURL() (string, error) {
	if n.secret == "" {
		return n.webhookURL, nil
	}

	timestamp := n.now().UnixMilli()
	sign := signature(timestamp, n.secret)

	parsed, err := url.Parse(n.webhookURL)
	if err != nil {
		return "", fmt.Errorf("parse webhook url: %w", err)
	}
	query := parsed.Query()
	query.Set("timestamp", fmt.Sprintf("%d", timestamp))
	query.Set("sign", sign)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func signature(timestamp int64, secret string) string {
	payload := fmt.Sprintf("%d\n%s", timestamp, secret)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
