package httpapi

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codeduel/internal/app"
	"codeduel/internal/config"
	"codeduel/internal/domain"
	"codeduel/internal/ports"
)

const (
	maintenanceInterval = time.Second
	recordTimeout       = 5 * time.Second
	defaultPlayerName   = "Player"
)

var errBadFrame = fmt.Errorf("%w: malformed frame", app.ErrInvalidMove)

// Hub owns the websocket clients of the standalone server and routes intents into
// the registry. Rooms are addressed by code; a client sits in at most one room.
type Hub struct {
	registry *app.Registry
	tokens   *app.TokenService
	results  ports.ResultStore
	cfg      *config.GameConfig
	logger   *zap.Logger

	// outMu serializes fan-out so snapshots reach every client in the order they
	// were taken.
	outMu sync.Mutex

	mu         sync.Mutex
	rng        *rand.Rand
	clients    map[*Client]struct{}
	seats      map[string]map[string]*Client // room code -> user id -> client
	botTimers  map[string]*time.Timer
	fillTimers map[string]*time.Timer
}

// NewHub builds a hub with its own registry. results may be nil to skip persistence.
func NewHub(cfg *config.GameConfig, tokens *app.TokenService, results ports.ResultStore, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		tokens:     tokens,
		results:    results,
		cfg:        cfg,
		logger:     logger,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		clients:    make(map[*Client]struct{}),
		seats:      make(map[string]map[string]*Client),
		botTimers:  make(map[string]*time.Timer),
		fillTimers: make(map[string]*time.Timer),
	}
	h.registry = app.NewRegistry(
		app.WithRules(cfg.DomainRules()),
		app.WithRetention(cfg.Rooms.Retention),
		app.WithLogger(logger.Named("registry")),
		app.WithOnChange(h.broadcastRooms),
	)
	return h
}

func (h *Hub) Registry() *app.Registry {
	return h.registry
}

// Run expires disconnected players and sweeps stale rooms until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	sweepEvery := h.cfg.Rooms.SweepInterval
	lastSweep := time.Now()

	for {
		select {
		case <-ctx.Done():
			h.stopTimers()
			return
		case now := <-ticker.C:
			if grace := h.cfg.Rooms.DisconnectGrace; grace > 0 {
				for room, events := range h.registry.ExpireDisconnects(grace) {
					h.dispatch(room, events)
				}
			}
			if sweepEvery > 0 && now.Sub(lastSweep) >= sweepEvery {
				lastSweep = now
				h.forget(h.registry.Sweep())
			}
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	c.sendFrame(app.Frame{Type: app.FrameRooms, Payload: h.registry.ListOpenRooms()})
}

// unregister drops c and keeps its seat for the disconnect grace period.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	code, userID := c.room, c.userID
	owned := code != "" && h.seats[code][userID] == c
	if owned {
		delete(h.seats[code], userID)
	}
	h.mu.Unlock()

	if !owned {
		return
	}
	events, err := h.registry.Disconnect(code, userID)
	if err != nil {
		h.logger.Debug("disconnect ignored", zap.String("room", code), zap.String("user", userID), zap.Error(err))
		return
	}
	h.logger.Info("player disconnected", zap.String("room", code), zap.String("user", userID))
	h.relay(code, events)
}

func (h *Hub) handle(c *Client, in app.Intent) {
	switch in.Type {
	case app.IntentJoinRoom, app.IntentQuickMatch, app.IntentStartAIGame:
		h.join(c, in)
	case app.IntentLeaveRoom:
		h.leave(c)
	case app.IntentRequestState:
		room, userID, err := h.roomOf(c)
		if err != nil {
			c.sendFrame(app.ErrorFrame(err))
			return
		}
		c.sendFrame(app.StateFrame(room.Snapshot(userID)))
	default:
		room, userID, err := h.roomOf(c)
		if err != nil {
			c.sendFrame(app.ErrorFrame(err))
			return
		}
		events, err := room.Apply(userID, in)
		if err != nil {
			h.logger.Debug("intent rejected", zap.String("room", room.Code), zap.String("user", userID), zap.String("type", in.Type), zap.Error(err))
			c.sendFrame(app.ErrorFrame(err))
			return
		}
		h.dispatch(room, events)
	}
}

// resume rejoins the room named in a session token presented at connect time.
func (h *Hub) resume(c *Client, token string) {
	claims, err := h.tokens.Verify(token)
	if err != nil {
		c.sendFrame(app.ErrorFrame(err))
		return
	}
	h.mu.Lock()
	c.userID, c.name = claims.UserID, claims.Name
	h.mu.Unlock()
	if claims.Room == "" {
		return
	}
	h.join(c, app.Intent{Type: app.IntentJoinRoom, Room: claims.Room, Token: token})
}

func (h *Hub) join(c *Client, in app.Intent) {
	p, err := h.identify(c, in)
	if err != nil {
		c.sendFrame(app.ErrorFrame(err))
		return
	}

	h.mu.Lock()
	current := c.room
	h.mu.Unlock()

	var res app.JoinResult
	switch in.Type {
	case app.IntentJoinRoom:
		if in.Room == "" {
			err = fmt.Errorf("%w: room is required", app.ErrInvalidRoomCode)
			break
		}
		if current != "" {
			if code, _ := app.NormalizeCode(in.Room); code != current {
				err = fmt.Errorf("%w: in room %s", app.ErrAlreadySeated, current)
				break
			}
		}
		// A join carrying a token only resumes; it never opens a new room.
		if in.Token != "" {
			res, err = h.registry.JoinRoom(in.Room, p)
		} else {
			res, err = h.registry.JoinOrCreate(in.Room, p)
		}
	case app.IntentQuickMatch:
		if current != "" {
			err = fmt.Errorf("%w: in room %s", app.ErrAlreadySeated, current)
			break
		}
		res, err = h.registry.QuickMatch(p)
	case app.IntentStartAIGame:
		if current != "" {
			err = fmt.Errorf("%w: in room %s", app.ErrAlreadySeated, current)
			break
		}
		level := h.cfg.DefaultDifficulty()
		if in.Difficulty != "" {
			level = domain.ParseDifficulty(in.Difficulty)
		}
		res, err = h.registry.StartAIGame(p, level, in.RoomCode)
	}
	if err != nil {
		h.logger.Debug("join rejected", zap.String("user", p.UserID), zap.String("type", in.Type), zap.Error(err))
		c.sendFrame(app.ErrorFrame(err))
		return
	}

	room := res.Room
	h.bind(c, room.Code, p.UserID)

	token, err := h.tokens.Issue(p.UserID, p.Name, room.Code)
	if err != nil {
		h.logger.Warn("session token not issued", zap.String("user", p.UserID), zap.Error(err))
	}
	c.sendFrame(app.Frame{Type: app.FrameSession, Payload: app.SessionPayload{
		Room:     room.Code,
		UserID:   p.UserID,
		Token:    token,
		Created:  res.Created,
		Rejoined: res.Rejoined,
	}})
	h.logger.Info("player joined", zap.String("room", room.Code), zap.String("user", p.UserID),
		zap.Bool("created", res.Created), zap.Bool("rejoined", res.Rejoined))

	if len(res.Events) > 0 {
		h.dispatch(room, res.Events)
	} else {
		h.pushSnapshots(room)
		h.scheduleBot(room)
	}
	if res.Created && room.Phase() == domain.PhaseWaiting {
		h.scheduleAutoFill(room)
	}
}

// identify resolves who c is: an existing identity, then a session token, then a
// client supplied uid, then a fresh guest id.
func (h *Hub) identify(c *Client, in app.Intent) (app.PlayerInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.userID == "" {
		switch {
		case in.Token != "":
			claims, err := h.tokens.Verify(in.Token)
			if err != nil {
				return app.PlayerInfo{}, err
			}
			c.userID, c.name = claims.UserID, claims.Name
		case in.UID != "":
			c.userID = in.UID
		default:
			c.userID = "guest-" + uuid.NewString()
		}
	}
	if in.PlayerName != "" {
		c.name = in.PlayerName
	}
	if c.name == "" {
		c.name = defaultPlayerName
	}
	return app.PlayerInfo{UserID: c.userID, Name: c.name}, nil
}

// bind seats c in code, replacing an older connection of the same user.
func (h *Hub) bind(c *Client, code, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.room = code
	members, ok := h.seats[code]
	if !ok {
		members = make(map[string]*Client)
		h.seats[code] = members
	}
	if old, ok := members[userID]; ok && old != c {
		old.room = ""
	}
	members[userID] = c
}

func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	code, userID := c.room, c.userID
	h.mu.Unlock()
	if code == "" {
		c.sendFrame(app.ErrorFrame(app.ErrRoomNotFound))
		return
	}

	events, err := h.registry.Leave(code, userID)
	if err != nil {
		c.sendFrame(app.ErrorFrame(err))
		return
	}
	h.logger.Info("player left", zap.String("room", code), zap.String("user", userID))
	h.relay(code, events)

	h.mu.Lock()
	c.room = ""
	if h.seats[code][userID] == c {
		delete(h.seats[code], userID)
	}
	h.mu.Unlock()
	c.sendFrame(app.Frame{Type: app.FrameRooms, Payload: h.registry.ListOpenRooms()})
}

func (h *Hub) roomOf(c *Client) (*app.Room, string, error) {
	h.mu.Lock()
	code, userID := c.room, c.userID
	h.mu.Unlock()
	if code == "" {
		return nil, "", app.ErrRoomNotFound
	}
	room, err := h.registry.Get(code)
	if err != nil {
		return nil, "", err
	}
	return room, userID, nil
}

// relay dispatches events for a room that may already be gone from the registry.
func (h *Hub) relay(code string, events []app.Event) {
	if room, err := h.registry.Get(code); err == nil {
		h.dispatch(room, events)
		return
	}
	h.outMu.Lock()
	for _, ev := range events {
		h.sendTo(code, ev.Recipients, app.EventFrame(ev))
	}
	h.outMu.Unlock()
	h.record(events)
	h.forget([]string{code})
}

// dispatch sends events to their recipients, refreshes every viewer of the room and
// schedules the bot if it is up next.
func (h *Hub) dispatch(room *app.Room, events []app.Event) {
	if len(events) == 0 {
		return
	}
	h.outMu.Lock()
	for _, ev := range events {
		h.sendTo(room.Code, ev.Recipients, app.EventFrame(ev))
	}
	h.outMu.Unlock()
	h.record(events)
	h.pushSnapshots(room)
	h.scheduleBot(room)
}

func (h *Hub) record(events []app.Event) {
	if h.results == nil {
		return
	}
	for _, ev := range events {
		p, ok := ev.Payload.(app.GameEndedPayload)
		if ev.Kind != app.EventGameEnded || !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := h.results.RecordGame(ctx, p.Record); err != nil {
			h.logger.Error("failed to record game", zap.String("game", p.Record.ID), zap.Error(err))
		}
		cancel()
	}
}

// sendTo queues frame for recipients in code, or for everyone there when recipients
// is empty. Callers hold outMu.
func (h *Hub) sendTo(code string, recipients []string, frame app.Frame) {
	h.mu.Lock()
	members := h.seats[code]
	var targets []*Client
	if len(recipients) == 0 {
		targets = make([]*Client, 0, len(members))
		for _, c := range members {
			targets = append(targets, c)
		}
	} else {
		for _, id := range recipients {
			if c, ok := members[id]; ok {
				targets = append(targets, c)
			}
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.sendFrame(frame)
	}
}

// pushSnapshots sends each connected viewer its own view of the room.
func (h *Hub) pushSnapshots(room *app.Room) {
	h.outMu.Lock()
	defer h.outMu.Unlock()

	h.mu.Lock()
	viewers := make(map[string]*Client, len(h.seats[room.Code]))
	for id, c := range h.seats[room.Code] {
		viewers[id] = c
	}
	h.mu.Unlock()

	for id, c := range viewers {
		c.sendFrame(app.StateFrame(room.Snapshot(id)))
	}
}

func (h *Hub) broadcastRooms(infos []app.RoomInfo) {
	frame := app.Frame{Type: app.FrameRooms, Payload: infos}
	h.mu.Lock()
	lobby := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c.room == "" {
			lobby = append(lobby, c)
		}
	}
	h.mu.Unlock()
	for _, c := range lobby {
		c.sendFrame(frame)
	}
}

// scheduleBot arms one think timer per room while an AI player is to move.
func (h *Hub) scheduleBot(room *app.Room) {
	if !room.BotToMove() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, pending := h.botTimers[room.Code]; pending {
		return
	}
	h.botTimers[room.Code] = time.AfterFunc(h.botDelayLocked(), func() {
		h.mu.Lock()
		delete(h.botTimers, room.Code)
		h.mu.Unlock()

		events, err := room.StepBot()
		if err != nil {
			h.logger.Error("bot move failed", zap.String("room", room.Code), zap.Error(err))
			return
		}
		h.dispatch(room, events)
	})
}

func (h *Hub) botDelayLocked() time.Duration {
	lo, hi := h.cfg.Bots.MinDelay, h.cfg.Bots.MaxDelay
	d := lo
	if hi > lo {
		d += time.Duration(h.rng.Int63n(int64(hi - lo + 1)))
	}
	return d
}

// scheduleAutoFill seats a bot in a room that is still waiting after the fill delay.
func (h *Hub) scheduleAutoFill(room *app.Room) {
	delay := h.cfg.Bots.AutoFillDelay
	if !h.cfg.Bots.Enabled || delay <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, pending := h.fillTimers[room.Code]; pending {
		return
	}
	h.fillTimers[room.Code] = time.AfterFunc(delay, func() {
		h.mu.Lock()
		delete(h.fillTimers, room.Code)
		h.mu.Unlock()

		if room.Phase() != domain.PhaseWaiting {
			return
		}
		res, err := h.registry.FillWithBot(room.Code, h.cfg.DefaultDifficulty())
		if err != nil {
			if !errors.Is(err, app.ErrRoomNotFound) && !errors.Is(err, app.ErrRoomFull) {
				h.logger.Warn("auto-fill failed", zap.String("room", room.Code), zap.Error(err))
			}
			return
		}
		h.logger.Info("auto-filled room with bot", zap.String("room", room.Code))
		h.dispatch(res.Room, res.Events)
	})
}

// forget drops hub state for rooms that left the registry.
func (h *Hub) forget(codes []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, code := range codes {
		for _, c := range h.seats[code] {
			if c.room == code {
				c.room = ""
			}
		}
		delete(h.seats, code)
		if t, ok := h.botTimers[code]; ok {
			t.Stop()
			delete(h.botTimers, code)
		}
		if t, ok := h.fillTimers[code]; ok {
			t.Stop()
			delete(h.fillTimers, code)
		}
	}
}

func (h *Hub) stopTimers() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for code, t := range h.botTimers {
		t.Stop()
		delete(h.botTimers, code)
	}
	for code, t := range h.fillTimers {
		t.Stop()
		delete(h.fillTimers, code)
	}
}
