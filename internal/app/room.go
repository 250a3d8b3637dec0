package app

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"codeduel/internal/bot"
	"codeduel/internal/domain"
)

// Room owns one session. Every mutation of the game goes through the room lock, so
// commands on one room are applied one at a time and never observe each other's
// intermediate state.
type Room struct {
	Code      string
	CreatedAt time.Time

	mu           sync.Mutex
	game         *domain.Game
	svc          *Service
	rng          *rand.Rand
	agents       map[string]*bot.Agent
	disconnected map[string]time.Time
	logger       *zap.Logger

	bindMu  sync.Mutex
	binding string

	// guarded by Registry.mu
	meta roomMeta
}

type roomMeta struct {
	seats  [2]string
	names  [2]string
	queued bool
}

func (m *roomMeta) seated() int {
	n := 0
	for _, id := range m.seats {
		if id != "" {
			n++
		}
	}
	return n
}

func (m *roomMeta) has(userID string) bool {
	return m.seats[0] == userID || m.seats[1] == userID
}

func (m *roomMeta) claim(userID, name string) bool {
	for i, id := range m.seats {
		if id == "" {
			m.seats[i] = userID
			m.names[i] = name
			return true
		}
	}
	return false
}

func (m *roomMeta) release(userID string) {
	for i, id := range m.seats {
		if id == userID {
			m.seats[i] = ""
			m.names[i] = ""
		}
	}
}

// host is the display name of the earliest seated player, or their id when unnamed.
func (m *roomMeta) host() string {
	for i, id := range m.seats {
		if id == "" {
			continue
		}
		if m.names[i] != "" {
			return m.names[i]
		}
		return id
	}
	return ""
}

func newRoom(code string, rules domain.Rules, seed int64, logger *zap.Logger, now time.Time) *Room {
	rng := rand.New(rand.NewSource(seed))
	return &Room{
		Code:         code,
		CreatedAt:    now,
		game:         domain.NewGame(code, rules),
		svc:          NewService(rng),
		rng:          rng,
		agents:       make(map[string]*bot.Agent),
		disconnected: make(map[string]time.Time),
		logger:       logger.With(zap.String("room", code)),
	}
}

func (r *Room) seat(player *domain.Player) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	events, err := r.svc.SeatPlayer(r.game, player)
	if err != nil {
		return nil, err
	}
	r.logger.Info("player seated", zap.String("user", player.ID), zap.Bool("ai", player.IsAI))
	return events, nil
}

func (r *Room) seatBot(identity bot.BotIdentity) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, err := bot.NewAgent(identity.UserID, identity.DisplayName, identity.Difficulty, rand.New(rand.NewSource(r.rng.Int63())))
	if err != nil {
		return nil, err
	}
	player := &domain.Player{
		ID:         identity.UserID,
		Name:       identity.DisplayName,
		IsAI:       true,
		Difficulty: identity.Difficulty,
	}
	events, err := r.svc.SeatPlayer(r.game, player)
	if err != nil {
		return nil, err
	}
	r.agents[agent.ID] = agent
	r.logger.Info("bot seated", zap.String("user", agent.ID), zap.String("difficulty", string(agent.Difficulty)))
	return events, nil
}

// PlayCard applies a play intent from userID.
func (r *Room) PlayCard(userID, cardID string, index int) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.svc.PlayCard(r.game, userID, cardID, index)
}

// PassTurn applies a pass intent from userID.
func (r *Room) PassTurn(userID string) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.svc.PassTurn(r.game, userID)
}

// UsePower applies a power intent. name is validated here since it comes straight
// from the client.
func (r *Room) UsePower(userID, name string) ([]Event, error) {
	power, ok := domain.ParsePower(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPower, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.svc.UsePower(r.game, userID, power)
}

// Forfeit ends the session against userID.
func (r *Room) Forfeit(userID string) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.svc.Forfeit(r.game, userID)
}

// Snapshot renders the room for viewerID.
func (r *Room) Snapshot(viewerID string) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return BuildSnapshot(r.game, viewerID)
}

// Phase reports the session phase.
func (r *Room) Phase() domain.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game.Phase
}

// Label is the match listing label for the room.
func (r *Room) Label() domain.LabelPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.ComputeLabel(r.game)
}

// Humans returns the ids of seated human players.
func (r *Room) Humans() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, pl := range r.game.Players {
		if pl != nil && !pl.IsAI {
			ids = append(ids, pl.ID)
		}
	}
	return ids
}

// Seated reports whether userID holds a seat in the session.
func (r *Room) Seated(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game.Seat(userID) >= 0
}

// BotToMove reports whether the turn owner is an AI player.
func (r *Room) BotToMove() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.game.Phase != domain.PhaseInProgress {
		return false
	}
	_, ok := r.agents[r.game.Current().ID]
	return ok
}

// StepBot lets the AI turn owner act once: spend a pending power, then play or pass.
// It returns no events when a human is to move.
func (r *Room) StepBot() ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.game.Phase != domain.PhaseInProgress {
		return nil, nil
	}
	agent, ok := r.agents[r.game.Current().ID]
	if !ok {
		return nil, nil
	}

	var events []Event
	view, _ := r.game.ViewFor(agent.ID)
	if power, ok := agent.ChoosePower(view); ok {
		used, err := r.svc.UsePower(r.game, agent.ID, power)
		if err != nil {
			r.logger.Debug("bot power rejected", zap.String("power", string(power)), zap.Error(err))
		} else {
			events = append(events, used...)
			view, _ = r.game.ViewFor(agent.ID)
		}
	}

	move, err := agent.Play(view)
	if err != nil {
		r.logger.Warn("bot move failed", zap.String("user", agent.ID), zap.Error(err))
		move = bot.Move{Pass: true}
	}
	if !move.Pass {
		played, err := r.svc.PlayCard(r.game, agent.ID, move.CardID, move.Index)
		if err == nil {
			return append(events, played...), nil
		}
		r.logger.Warn("bot chose an illegal move", zap.String("card", move.CardID), zap.Int("index", move.Index), zap.Error(err))
	}
	passed, err := r.svc.PassTurn(r.game, agent.ID)
	if err != nil {
		return events, err
	}
	return append(events, passed...), nil
}

// MarkDisconnected records that userID dropped. The transport decides when the
// grace period is over.
func (r *Room) MarkDisconnected(userID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.game.Seat(userID) < 0 {
		return
	}
	if _, ok := r.disconnected[userID]; !ok {
		r.disconnected[userID] = at
	}
}

// Reconnect clears a pending disconnect and reports whether there was one.
func (r *Room) Reconnect(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.disconnected[userID]
	delete(r.disconnected, userID)
	return ok
}

// ForfeitExpired forfeits every player whose disconnect is older than grace.
func (r *Room) ForfeitExpired(now time.Time, grace time.Duration) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var events []Event
	for userID, since := range r.disconnected {
		if now.Sub(since) < grace {
			continue
		}
		delete(r.disconnected, userID)
		forfeited, err := r.svc.Forfeit(r.game, userID)
		if err != nil {
			continue
		}
		r.logger.Info("player forfeited after disconnect", zap.String("user", userID))
		events = append(events, forfeited...)
	}
	return events
}

// Abandoned reports whether the game is over and no human is still connected.
func (r *Room) Abandoned() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.game.Phase != domain.PhaseGameOver {
		return false
	}
	for _, pl := range r.game.Players {
		if pl == nil || pl.IsAI {
			continue
		}
		if _, gone := r.disconnected[pl.ID]; !gone {
			return false
		}
	}
	return true
}

// EndedAt returns when the session finished, or the zero time.
func (r *Room) EndedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game.EndedAt
}

// BindTransport associates the room with a transport-level handle (a Nakama match
// id). create runs at most once per room.
func (r *Room) BindTransport(create func() (string, error)) (string, error) {
	r.bindMu.Lock()
	defer r.bindMu.Unlock()
	if r.binding != "" {
		return r.binding, nil
	}
	id, err := create()
	if err != nil {
		return "", err
	}
	r.binding = id
	return id, nil
}

// Binding returns the transport handle, or "".
func (r *Room) Binding() string {
	r.bindMu.Lock()
	defer r.bindMu.Unlock()
	return r.binding
}

// inspect runs fn under the room lock. Tests use it to check invariants.
func (r *Room) inspect(fn func(*domain.Game)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.game)
}
