package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"workforce-status-backend/internal/workforce"
)

// StateDisconnected is the state of an agent that identified but has not reported one yet.
const StateDisconnected = "disconnected"

// Client is one relay connection. The hub writes encoded messages to Send and closes it
// when the client is disconnected.
type Client struct {
	ID   string
	Send chan []byte
}

// NewClient creates a client with a send buffer of the given size.
func NewClient(id string, buffer int) *Client {
	return &Client{ID: id, Send: make(chan []byte, buffer)}
}

type agentEntry struct {
	client *Client
	agent  Agent
}

// Hub tracks connected agents and leaders and fans presence events out to leaders.
// Sends never block: a client with a full buffer misses the message.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	agents  map[int64]*agentEntry
	leaders map[string]*Client
	now     func() time.Time
}

// NewHub creates an empty hub. now defaults to time.Now.
func NewHub(now func() time.Time) *Hub {
	if now == nil {
		now = time.Now
	}
	return &Hub{
		clients: make(map[string]*Client),
		agents:  make(map[int64]*agentEntry),
		leaders: make(map[string]*Client),
		now:     now,
	}
}

// Register adds a connection that has not identified yet.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Disconnect forgets every role the client held, tells leaders about departed agents and
// closes the client's send channel.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	delete(h.leaders, c.ID)
	for id, entry := range h.agents {
		if entry.client != c {
			continue
		}
		delete(h.agents, id)
		slog.Info("agent disconnected", "advisor_id", id, "client_id", c.ID)
		h.broadcastLocked(Outbound{Type: TypeUserDisconnected, AdvisorID: id, Name: entry.agent.Name})
	}
	close(c.Send)
}

// Handle processes one raw message received from c.
func (h *Hub) Handle(c *Client, raw []byte) {
	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.send(c, Outbound{Type: TypeError, Message: "invalid message"})
		return
	}

	switch msg.Type {
	case TypeIdentifyAgent:
		h.identifyAgent(c, msg)
	case TypeIdentifyLeader:
		h.identifyLeader(c)
	case TypeStateChange:
		h.stateChange(msg)
	case TypeRequestAllStatus:
		h.send(c, Outbound{Type: TypeAllStatus, Agents: h.Snapshot()})
	case TypePing:
		h.ping(c, msg)
	default:
		slog.Debug("unknown relay message", "type", msg.Type, "client_id", c.ID)
		h.send(c, Outbound{Type: TypeError, Message: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

func (h *Hub) identifyAgent(c *Client, msg Inbound) {
	if msg.AdvisorID <= 0 {
		h.send(c, Outbound{Type: TypeError, Message: "advisor_id is required"})
		return
	}
	now := h.now().UTC()
	agent := Agent{
		AdvisorID:  msg.AdvisorID,
		Name:       msg.Name,
		Role:       msg.Role,
		Area:       msg.Area,
		State:      StateDisconnected,
		LastUpdate: now,
	}

	h.mu.Lock()
	h.agents[msg.AdvisorID] = &agentEntry{client: c, agent: agent}
	h.broadcastLocked(Outbound{
		Type:      TypeUserConnected,
		AdvisorID: agent.AdvisorID,
		Name:      agent.Name,
		Role:      agent.Role,
		Area:      agent.Area,
	})
	h.mu.Unlock()

	slog.Info("agent connected", "advisor_id", msg.AdvisorID, "client_id", c.ID)
	h.send(c, Outbound{Type: TypeConnected, AdvisorID: msg.AdvisorID, ServerTime: &now})
}

func (h *Hub) identifyLeader(c *Client) {
	h.mu.Lock()
	h.leaders[c.ID] = c
	h.mu.Unlock()

	slog.Info("leader connected", "client_id", c.ID)
	now := h.now().UTC()
	h.send(c, Outbound{Type: TypeConnected, ServerTime: &now})
}

func (h *Hub) stateChange(msg Inbound) {
	at := h.now().UTC()
	if msg.Timestamp != nil {
		at = msg.Timestamp.UTC()
	}
	h.setState(msg.AdvisorID, msg.State, at)
}

func (h *Hub) ping(c *Client, msg Inbound) {
	now := h.now().UTC()
	if msg.AdvisorID > 0 {
		h.mu.Lock()
		if entry, ok := h.agents[msg.AdvisorID]; ok {
			entry.agent.LastUpdate = now
		}
		h.mu.Unlock()
	}
	h.send(c, Outbound{Type: TypePong, ServerTime: &now})
}

// setState records a connected agent's state and mirrors it to leaders. Unknown agents
// are ignored.
func (h *Hub) setState(advisorID int64, state string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.agents[advisorID]
	if !ok {
		return
	}
	entry.agent.State = state
	entry.agent.LastUpdate = at
	h.broadcastLocked(Outbound{
		Type:      TypeStateChange,
		AdvisorID: advisorID,
		Name:      entry.agent.Name,
		Role:      entry.agent.Role,
		Area:      entry.agent.Area,
		State:     state,
		Timestamp: &at,
	})
}

// OnTransition mirrors committed transitions to leaders.
func (h *Hub) OnTransition(_ context.Context, ev workforce.TransitionEvent) {
	state := StateDisconnected
	if ev.Opened != nil {
		state = ev.Opened.StateKind.Slug
	}
	h.setState(ev.AdvisorID, state, ev.At.UTC())
}

// NotifyLeaders sends msg to every identified leader.
func (h *Hub) NotifyLeaders(msg Outbound) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.broadcastLocked(msg)
}

// Snapshot lists the connected agents ordered by advisor id.
func (h *Hub) Snapshot() []Agent {
	h.mu.RLock()
	out := make([]Agent, 0, len(h.agents))
	for _, entry := range h.agents {
		out = append(out, entry.agent)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AdvisorID < out[j].AdvisorID })
	return out
}

// Leaders returns the number of identified leaders.
func (h *Hub) Leaders() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.leaders)
}

func (h *Hub) broadcastLocked(msg Outbound) {
	payload := encode(msg)
	for _, c := range h.leaders {
		deliver(c, payload)
	}
}

func (h *Hub) send(c *Client, msg Outbound) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	deliver(c, encode(msg))
}

func deliver(c *Client, payload []byte) {
	select {
	case c.Send <- payload:
	default:
		slog.Warn("dropping relay message", "client_id", c.ID)
	}
}
