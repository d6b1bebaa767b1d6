package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/ports"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/resilience"
)

// Notifier posts rendered messages to a Feishu custom-bot webhook.
type Notifier struct {
	client     *http.Client
	webhookURL string
}

var _ ports.Sender = (*Notifier)(nil)

func New(webhookURL string) *Notifier {
	return &Notifier{
		client:     &http.Client{Timeout: 15 * time.Second},
		webhookURL: webhookURL,
	}
}

func (n *Notifier) Platform() domain.Platform {
	return domain.PlatformFeishu
}

func (n *Notifier) Send(ctx context.Context, msg domain.RenderedMessage) error {
	return n.post(ctx, msg.Payload)
}

// SendTest delivers a short text message so webhook configuration can be
// verified without a full digest.
func (n *Notifier) SendTest(ctx context.Context) error {
	payload, err := json.Marshal(map[string]any{
		"msg_type": "text",
		"content": map[string]string{
			"text": "🎉 Intelligence Agent 测试消息，webhook 配置正常！",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal test message: %w", err)
	}
	return n.post(ctx, payload)
}

func (n *Notifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
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

	// Feishu reports webhook-level failures inside a 200 body.
	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("webhook rejected message: code %d: %s", result.Code, result.Msg)
	}
	return nil
}
