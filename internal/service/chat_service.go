package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"docchat/internal/config"
	"docchat/internal/domain"
	"docchat/internal/history"
	"docchat/internal/observability"
	"docchat/internal/repository"
)

// ChatService drives one chat turn end to end: it bounds the conversation
// history, invokes the external generation flow, and republishes the
// flow's events as typed stream events. Exactly one final_response (or a
// terminal error) ends an uncancelled stream; a client cancellation closes
// the stream silently with no final_response.
type ChatService struct {
	cfg      *config.Config
	sessions *repository.SessionRepository
	history  *history.Manager
	flow     Flow
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(
	cfg *config.Config,
	sessions *repository.SessionRepository,
	historyMgr *history.Manager,
	flow Flow,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		cfg:      cfg,
		sessions: sessions,
		history:  historyMgr,
		flow:     flow,
		metrics:  metrics,
		logger:   logger,
	}
}

// EnabledTools resolves the tool names for a request from the configured
// feature flags. A non-empty requested list is filtered down to the
// recognized, enabled names; otherwise every enabled tool is offered.
func (s *ChatService) EnabledTools(requested []string) []string {
	enabled := make(map[string]bool, len(s.cfg.Tools))
	for name, on := range s.cfg.Tools {
		if on {
			enabled[name] = true
		}
	}

	var tools []string
	if len(requested) > 0 {
		for _, name := range requested {
			if enabled[name] {
				tools = append(tools, name)
			}
		}
	} else {
		for name := range enabled {
			tools = append(tools, name)
		}
	}
	sort.Strings(tools)
	return tools
}

// ChatStream runs the chat path for one request and returns the stream of
// typed events. The returned channel is closed after the terminal event,
// or as soon as cancellation is observed at a suspension point.
func (s *ChatService) ChatStream(ctx context.Context, req *domain.ChatRequest) (<-chan domain.StreamEvent, error) {
	// Session is created on first chat for this identifier. The activity
	// touch goes through the atomic update so it cannot clobber a
	// concurrent upload's changes with a stale view.
	if _, err := s.sessions.Update(req.SessionID, nil); err != nil {
		return nil, err
	}

	turns := s.history.Prepare(req.History, req.ModelID)

	if err := s.sessions.AppendTurn(req.SessionID, domain.DefaultThreadID, domain.ConversationTurn{
		Role:     domain.RoleUser,
		Segments: []string{req.Query},
	}); err != nil {
		return nil, err
	}

	events, err := s.flow.Stream(ctx, FlowRequest{
		Query:     req.Query,
		SessionID: req.SessionID,
		ModelID:   req.ModelID,
		History:   turns,
		Tools:     s.EnabledTools(req.Tools),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}

	out := make(chan domain.StreamEvent, 16)
	go s.pump(ctx, req, events, out)
	return out, nil
}

// pump forwards flow events to the client channel, checking cancellation
// before every forward. It owns the terminal event: one final_response on
// normal completion, one error frame on upstream failure, nothing on
// cancellation.
func (s *ChatService) pump(ctx context.Context, req *domain.ChatRequest, events <-chan FlowEvent, out chan<- domain.StreamEvent) {
	defer close(out)

	var answer strings.Builder
	var invocations []domain.ToolInvocation

	emit := func(ev domain.StreamEvent) bool {
		// The out channel is buffered, so a select alone could pick the
		// send even after cancellation. Check first.
		if ctx.Err() != nil {
			s.observeCancel(req)
			return false
		}
		select {
		case <-ctx.Done():
			s.observeCancel(req)
			return false
		case out <- ev:
			s.metrics.StreamEventsTotal.WithLabelValues(ev.Type).Inc()
			return true
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.observeCancel(req)
			return
		case ev, ok := <-events:
			if !ok {
				// Flow finished without an explicit done marker; the
				// assembled answer still gets its final frame.
				s.finish(req, answer.String(), invocations, emit)
				return
			}
			switch ev.Type {
			case FlowEventToken:
				answer.WriteString(ev.Content)
				if !emit(domain.StreamEvent{Type: domain.EventChunk, Content: ev.Content}) {
					return
				}
			case FlowEventSources:
				if !emit(domain.StreamEvent{Type: domain.EventSources, Sources: ev.Sources}) {
					return
				}
			case FlowEventToolCall:
				if ev.Invocation == nil {
					continue
				}
				invocations = append(invocations, *ev.Invocation)
				if !emit(domain.StreamEvent{Type: domain.EventToolInvocation, Invocation: ev.Invocation}) {
					return
				}
			case FlowEventToolCalls:
				invocations = append(invocations, ev.Invocations...)
				if !emit(domain.StreamEvent{Type: domain.EventToolInvocations, Invocations: ev.Invocations}) {
					return
				}
			case FlowEventError:
				// A cancelled request is already counted as cancelled;
				// only count error when the frame actually went out.
				if emit(domain.StreamEvent{Type: domain.EventError, Error: ev.Error}) {
					s.metrics.ChatRequestsTotal.WithLabelValues("error").Inc()
				}
				return
			case FlowEventDone:
				s.finish(req, answer.String(), invocations, emit)
				return
			default:
				s.logger.Warn("unknown flow event kind", zap.String("kind", ev.Type))
			}
		}
	}
}

// finish persists the completed model turn and emits the single
// final_response frame.
func (s *ChatService) finish(req *domain.ChatRequest, answer string, invocations []domain.ToolInvocation, emit func(domain.StreamEvent) bool) {
	if err := s.sessions.AppendTurn(req.SessionID, domain.DefaultThreadID, domain.ConversationTurn{
		Role:     domain.RoleModel,
		Segments: []string{answer},
	}); err != nil {
		s.logger.Error("failed to persist model turn",
			zap.String("session_id", req.SessionID), zap.Error(err))
	}

	if emit(domain.StreamEvent{
		Type:        domain.EventFinalResponse,
		SessionID:   req.SessionID,
		Response:    answer,
		Invocations: invocations,
	}) {
		s.metrics.ChatRequestsTotal.WithLabelValues("ok").Inc()
	}
}

func (s *ChatService) observeCancel(req *domain.ChatRequest) {
	s.metrics.ClientDisconnectsTotal.Inc()
	s.metrics.ChatRequestsTotal.WithLabelValues("cancelled").Inc()
	s.logger.Info("chat stream cancelled by client",
		zap.String("session_id", req.SessionID))
}
