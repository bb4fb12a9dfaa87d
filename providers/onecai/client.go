// Package onecai implements the HTTP gateway to the 1C.ai code assistant
// ("1С:Напарник"). It opens conversations, streams answers back out of the
// event stream, and owns the bounded registry of live conversations.
package onecai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/naparnik-ai/copilot/core"
	"github.com/naparnik-ai/copilot/internal/httpclient"
	"github.com/naparnik-ai/copilot/obs"
	"github.com/naparnik-ai/copilot/session"
	"github.com/naparnik-ai/copilot/stream"
)

// The service authorizes the token only for requests that look like its own
// web client, so the browser headers below are part of the wire contract.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/620.1 (KHTML, like Gecko) JavaFX/22 Safari/620.1"

// Client talks to the 1C.ai chat API.
type Client struct {
	opts       options
	httpClient *http.Client
	store      *session.Store
	logger     *slog.Logger
	headers    map[string]string
}

// remoteOp carries the per-operation error phrasing surfaced to users.
type remoteOp struct {
	statusMsg string
	netMsg    string
}

var (
	opOpenConversation = remoteOp{
		statusMsg: "ошибка создания дискуссии",
		netMsg:    "ошибка сети при создании дискуссии",
	}
	opSendMessage = remoteOp{
		statusMsg: "ошибка отправки сообщения",
		netMsg:    "ошибка сети при отправке сообщения",
	}
)

// New constructs a client. The token is required; the session limits are
// validated up front and nothing is clamped.
func New(opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(o.token) == "" {
		return nil, core.NewError(core.ErrConfig, "ONEC_AI_TOKEN is not set")
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "onecai"))

	observer := o.observer
	if observer == nil {
		observer = obs.SessionObserver{}
	}
	storeOpts := []session.Option{
		session.WithLogger(logger),
		session.WithObserver(observer),
	}
	if o.clock != nil {
		storeOpts = append(storeOpts, session.WithClock(o.clock))
	}
	store, err := session.NewStore(o.maxSessions, o.sessionTTL, storeOpts...)
	if err != nil {
		return nil, err
	}

	if o.httpClient == nil {
		o.httpClient = httpclient.New(httpclient.WithResponseHeaderTimeout(o.timeout))
	}
	o.baseURL = strings.TrimRight(o.baseURL, "/")

	headers := map[string]string{
		"Accept":          "*/*",
		"Accept-Charset":  "utf-8",
		"Accept-Language": "ru-ru,en-us;q=0.8,en;q=0.7",
		"Authorization":   o.token,
		"Content-Type":    "application/json; charset=utf-8",
		"Origin":          o.baseURL,
		"Referer":         o.baseURL + "/chat/",
		"User-Agent":      userAgent,
	}

	return &Client{
		opts:       o,
		httpClient: o.httpClient,
		store:      store,
		logger:     logger,
		headers:    headers,
	}, nil
}

// Ask answers one question, reusing the freshest live conversation unless
// ForceNew demands a fresh one. The conversation registry is consulted and
// updated outside of any network wait.
func (c *Client) Ask(ctx context.Context, req core.AskRequest) (_ *core.Answer, err error) {
	ctx, recorder := obs.StartRequest(ctx, "providers.onecai.Ask",
		attribute.String("ai.provider", "1c.ai"),
		attribute.String("ai.operation", "ask"),
	)
	defer func() { recorder.End(err) }()

	if err = req.Validate(); err != nil {
		return nil, err
	}

	conversationID, reused := c.store.Acquire(req.ForceNew)
	if !reused {
		conversationID, err = c.OpenConversation(ctx, ConversationOptions{
			ProgrammingLanguage: req.ProgrammingLanguage,
		})
		if err != nil {
			return nil, err
		}
	}
	recorder.AddAttributes(
		attribute.String("ai.conversation_id", conversationID),
		attribute.Bool("ai.conversation_created", !reused),
	)

	text, err := c.SendMessage(ctx, conversationID, req.Question)
	if err != nil {
		return nil, err
	}
	return &core.Answer{Text: text, ConversationID: conversationID, Created: !reused}, nil
}

// OpenConversation opens a fresh remote conversation and registers it in
// the registry. It returns the identifier issued by the service.
func (c *Client) OpenConversation(ctx context.Context, convOpts ConversationOptions) (_ string, err error) {
	ctx, recorder := obs.StartRequest(ctx, "providers.onecai.OpenConversation",
		attribute.String("ai.provider", "1c.ai"),
		attribute.String("ai.operation", "conversations.create"),
	)
	defer func() { recorder.End(err) }()

	payload := conversationRequest{
		UILanguage:          c.opts.uiLanguage,
		ProgrammingLanguage: chooseLanguage(convOpts.ProgrammingLanguage, c.opts.programmingLanguage),
		ScriptLanguage:      chooseLanguage(convOpts.ScriptLanguage, c.opts.scriptLanguage),
	}
	body, err := c.doRequest(ctx, c.opts.baseURL+"/chat_api/v1/conversations/", payload,
		map[string]string{"Session-Id": ""}, opOpenConversation)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var resp conversationResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", core.NewError(core.ErrRemote, "недопустимый ответ при создании дискуссии", core.WithWrapped(err))
	}
	if resp.UUID == "" {
		return "", core.NewError(core.ErrRemote, "сервис не вернул идентификатор дискуссии")
	}

	c.store.Touch(resp.UUID)
	recorder.AddAttributes(attribute.String("ai.conversation_id", resp.UUID))
	c.logger.Info("created conversation", slog.String("conversation_id", resp.UUID))
	return resp.UUID, nil
}

// SendMessage submits one instruction to an open conversation and
// reconstructs the streamed answer. The registry entry is touched before
// the network call and is not rolled back on failure; an unknown id is
// registered on the fly.
func (c *Client) SendMessage(ctx context.Context, conversationID, message string) (_ string, err error) {
	ctx, recorder := obs.StartRequest(ctx, "providers.onecai.SendMessage",
		attribute.String("ai.provider", "1c.ai"),
		attribute.String("ai.operation", "messages.stream"),
		attribute.String("ai.conversation_id", conversationID),
	)
	defer func() { recorder.End(err) }()

	if strings.TrimSpace(message) == "" {
		return "", core.NewError(core.ErrEmptyInput, "сообщение не может быть пустым")
	}

	c.store.Touch(conversationID)

	url := fmt.Sprintf("%s/chat_api/v1/conversations/%s/messages", c.opts.baseURL, conversationID)
	body, err := c.doRequest(ctx, url, messageRequest{Instruction: message},
		map[string]string{"Accept": "text/event-stream"}, opSendMessage)
	if err != nil {
		return "", err
	}
	defer body.Close()

	answer, err := stream.Collect(body, stream.WithLogger(c.logger))
	if err != nil {
		return "", classifyTransport(err, opSendMessage)
	}

	chars := utf8.RuneCountInString(answer)
	obs.RecordAnswerChars(chars)
	c.logger.Info("received answer",
		slog.String("conversation_id", conversationID),
		slog.Int("chars", chars))
	return answer, nil
}

// Sessions exposes the conversation registry.
func (c *Client) Sessions() *session.Store { return c.store }

// Close releases idle network resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) doRequest(ctx context.Context, url string, payload any, extra map[string]string, op remoteOp) (io.ReadCloser, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err, op)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := fmt.Sprintf("%s: %d", op.statusMsg, resp.StatusCode)
		if excerpt := strings.TrimSpace(string(data)); excerpt != "" {
			msg = fmt.Sprintf("%s: %s", msg, excerpt)
		}
		return nil, core.NewError(core.ErrRemote, msg, core.WithStatus(resp.StatusCode))
	}
	return resp.Body, nil
}

func classifyTransport(err error, op remoteOp) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return core.NewError(core.ErrTimeout, op.netMsg+": превышено время ожидания", core.WithWrapped(err))
	case errors.Is(err, context.Canceled):
		return core.NewError(core.ErrCanceled, op.netMsg+": запрос отменен", core.WithWrapped(err))
	default:
		return core.NewError(core.ErrRemote, op.netMsg, core.WithWrapped(err))
	}
}

func chooseLanguage(requested, configured string) string {
	if requested != "" {
		return requested
	}
	return configured
}
