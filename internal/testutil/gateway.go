// Package testutil provides scripted collaborators for exercising the tool
// surface without a live remote service.
package testutil

import (
	"context"
	"sync"

	"github.com/naparnik-ai/copilot/core"
)

// FakeGateway is a scripted Gateway implementation. AnswerFunc decides each
// response; when nil every ask echoes the question back.
type FakeGateway struct {
	AnswerFunc func(req core.AskRequest) (*core.Answer, error)

	mu     sync.Mutex
	asks   []core.AskRequest
	closed bool
}

// Ask records the request and returns the scripted answer.
func (g *FakeGateway) Ask(ctx context.Context, req core.AskRequest) (*core.Answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.asks = append(g.asks, req)
	g.mu.Unlock()

	if g.AnswerFunc != nil {
		return g.AnswerFunc(req)
	}
	return &core.Answer{Text: req.Question, ConversationID: "conv-fake"}, nil
}

// Close marks the gateway closed.
func (g *FakeGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

// Asks returns a copy of every request seen so far.
func (g *FakeGateway) Asks() []core.AskRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]core.AskRequest(nil), g.asks...)
}

// Closed reports whether Close was called.
func (g *FakeGateway) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}
