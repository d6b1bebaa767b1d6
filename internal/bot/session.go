package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/ports"
)

const (
	defaultAPIBase = "https://open.feishu.cn/open-apis"

	eventMessageReceive = "im.message.receive_v1"
	pongReply           = "Pong! 🏓"

	maxReconnectDelay = time.Minute
)

// Answerer produces a chat reply from a question and prior conversation.
type Answerer interface {
	Answer(ctx context.Context, question string, history []ports.ChatMessage) string
}

// Session is a long-lived Feishu bot connection. It receives message events
// over a websocket, answers questions through the analyzer with per-chat
// conversation memory, and replies via the Feishu HTTP API.
type Session struct {
	appID     string
	appSecret string
	apiBase   string

	answerer Answerer
	memory   *Memory
	client   *http.Client
	dialer   *websocket.Dialer
	logger   *slog.Logger
}

func NewSession(appID, appSecret string, answerer Answerer, logger *slog.Logger) *Session {
	return &Session{
		appID:     appID,
		appSecret: appSecret,
		apiBase:   defaultAPIBase,
		answerer:  answerer,
		memory:    NewMemory(10, 30*time.Minute),
		client:    &http.Client{Timeout: 15 * time.Second},
		dialer:    websocket.DefaultDialer,
		logger:    logger,
	}
}

// Run connects and serves events until the context ends, reconnecting with
// exponential backoff on connection loss.
func (s *Session) Run(ctx context.Context) error {
	delay := time.Second
	for {
		err := s.serveOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("connection lost, reconnecting", "error", err, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (s *Session) serveOnce(ctx context.Context) error {
	wsURL, err := s.connectionURL(ctx)
	if err != nil {
		return err
	}

	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	defer conn.Close()
	s.logger.Info("bot connected")

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		s.handleFrame(ctx, payload)
	}
}

// connectionURL asks the endpoint service where to open the event websocket.
func (s *Session) connectionURL(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"AppID":     s.appID,
		"AppSecret": s.appSecret,
	})
	if err != nil {
		return "", fmt.Errorf("marshal endpoint request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.apiBase+"/callback/ws/endpoint", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build endpoint request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch endpoint: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			URL string `json:"URL"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return "", fmt.Errorf("decode endpoint response: %w", err)
	}
	if result.Code != 0 || result.Data.URL == "" {
		return "", fmt.Errorf("endpoint rejected: code %d: %s", result.Code, result.Msg)
	}
	return result.Data.URL, nil
}

type eventEnvelope struct {
	Header struct {
		EventType string `json:"event_type"`
	} `json:"header"`
	Event struct {
		Sender struct {
			SenderID struct {
				OpenID string `json:"open_id"`
			} `json:"sender_id"`
		} `json:"sender"`
		Message struct {
			ChatID   string `json:"chat_id"`
			ChatType string `json:"chat_type"`
			Content  string `json:"content"`
			Mentions []struct {
				Key  string `json:"key"`
				Name string `json:"name"`
			} `json:"mentions"`
		} `json:"message"`
	} `json:"event"`
}

func (s *Session) handleFrame(ctx context.Context, payload []byte) {
	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn("unparsable frame", "error", err)
		return
	}
	if envelope.Header.EventType != eventMessageReceive {
		return
	}

	msg := envelope.Event.Message

	// In group chats only react when the bot is mentioned.
	if msg.ChatType == "group" && len(msg.Mentions) == 0 {
		return
	}

	question := extractText(msg.Content)
	for _, mention := range msg.Mentions {
		question = strings.ReplaceAll(question, mention.Key, "")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return
	}

	turn := domain.ChatTurn{
		SessionID: msg.ChatID,
		Sender:    envelope.Event.Sender.SenderID.OpenID,
		Question:  question,
		Status:    domain.TurnPending,
	}

	// Answer off the read loop so a slow backend does not stall event intake.
	go s.answerTurn(ctx, turn)
}

func (s *Session) answerTurn(ctx context.Context, turn domain.ChatTurn) {
	if turn.Question == "/ping" {
		turn.Answer = pongReply
	} else {
		history := s.memory.History(turn.SessionID)
		turn.Answer = s.answerer.Answer(ctx, turn.Question, history)
		s.memory.Append(turn.SessionID, turn.Question, turn.Answer)
	}
	turn.Status = domain.TurnAnswered

	if err := s.reply(ctx, turn.SessionID, turn.Answer); err != nil {
		turn.Status = domain.TurnFailed
		s.logger.Error("reply failed", "chat_id", turn.SessionID, "error", err)
		return
	}
	s.logger.Info("turn answered", "chat_id", turn.SessionID, "sender", turn.Sender)
}

// extractText pulls the text field out of a Feishu message content blob.
func extractText(content string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return strings.TrimSpace(content)
	}
	return strings.TrimSpace(parsed.Text)
}

// reply sends a text message into the chat through the HTTP API.
func (s *Session) reply(ctx context.Context, chatID, text string) error {
	token, err := s.tenantAccessToken(ctx)
	if err != nil {
		return err
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal reply content: %w", err)
	}
	body, err := json.Marshal(map[string]string{
		"receive_id": chatID,
		"msg_type":   "text",
		"content":    string(content),
	})
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.apiBase+"/im/v1/messages?receive_id_type=chat_id", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post reply: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return fmt.Errorf("decode reply response: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("reply rejected: code %d: %s", result.Code, result.Msg)
	}
	return nil
}

func (s *Session) tenantAccessToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"app_id":     s.appID,
		"app_secret": s.appSecret,
	})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.apiBase+"/auth/v3/tenant_access_token/internal", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if result.Code != 0 {
		return "", fmt.Errorf("token rejected: code %d: %s", result.Code, result.Msg)
	}
	return result.TenantAccessToken, nil
}
