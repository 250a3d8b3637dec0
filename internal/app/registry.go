package app

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"codeduel/internal/bot"
	"codeduel/internal/domain"
)

// PlayerInfo identifies a human joining a room.
type PlayerInfo struct {
	UserID string
	Name   string
}

// RoomInfo is the public listing entry of a waiting room.
type RoomInfo struct {
	Code      string    `json:"code"`
	Host      string    `json:"host"`
	Players   int       `json:"players"`
	CreatedAt time.Time `json:"created_at"`
}

// JoinResult is what a join-like registry call hands back to the transport.
type JoinResult struct {
	Room     *Room
	Created  bool
	Rejoined bool
	Events   []Event
}

// Registry maps room codes to rooms and runs matchmaking. Its lock guards the code
// map, the waiting queue and seat claims only; a room's own lock is never taken
// while holding it.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	waiting []string
	rng     *rand.Rand

	rules     domain.Rules
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
	onChange  func([]RoomInfo)
}

type RegistryOption func(*Registry)

func WithRules(rules domain.Rules) RegistryOption {
	return func(r *Registry) { r.rules = rules }
}

func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

func WithSeed(seed int64) RegistryOption {
	return func(r *Registry) { r.rng = rand.New(rand.NewSource(seed)) }
}

func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithRetention sets how long finished rooms stay queryable before Sweep drops them.
func WithRetention(d time.Duration) RegistryOption {
	return func(r *Registry) { r.retention = d }
}

// WithOnChange registers a callback fired with the open room list whenever it may
// have changed. It runs outside the registry lock.
func WithOnChange(fn func([]RoomInfo)) RegistryOption {
	return func(r *Registry) { r.onChange = fn }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		rooms:     make(map[string]*Room),
		rules:     domain.DefaultRules(),
		retention: 10 * time.Minute,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r
}

// NormalizeCode upper-cases and validates a client supplied room code.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || len(code) > maxRoomCodeLen {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoomCode, code)
	}
	for _, ch := range code {
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			return "", fmt.Errorf("%w: %q", ErrInvalidRoomCode, code)
		}
	}
	return code, nil
}

// Get returns the room with the given code.
func (r *Registry) Get(code string) (*Room, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Rooms returns every live room.
func (r *Registry) Rooms() []*Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// CreateRoom opens a new room under a fresh code with host in the first seat.
func (r *Registry) CreateRoom(host PlayerInfo) (JoinResult, error) {
	r.mu.Lock()
	room := r.addRoomLocked(r.newCodeLocked())
	room.meta.claim(host.UserID, host.Name)
	r.enqueueLocked(room)
	r.mu.Unlock()

	return r.finishJoin(room, host, true)
}

// JoinRoom seats p in an existing room. Joining a room p already sits in counts as a
// reconnect.
func (r *Registry) JoinRoom(code string, p PlayerInfo) (JoinResult, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return JoinResult{}, err
	}
	r.mu.Lock()
	room, ok := r.rooms[code]
	if !ok {
		r.mu.Unlock()
		return JoinResult{}, ErrRoomNotFound
	}
	return r.joinLocked(room, p)
}

// JoinOrCreate joins the room with the given code, creating it when it does not
// exist yet.
func (r *Registry) JoinOrCreate(code string, p PlayerInfo) (JoinResult, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return JoinResult{}, err
	}
	r.mu.Lock()
	if room, ok := r.rooms[code]; ok {
		return r.joinLocked(room, p)
	}
	room := r.addRoomLocked(code)
	room.meta.claim(p.UserID, p.Name)
	r.enqueueLocked(room)
	r.mu.Unlock()

	return r.finishJoin(room, p, true)
}

// QuickMatch pairs p with the longest waiting room, or opens a new one. Claiming the
// seat happens in a single critical section, so two callers never take the same
// seat and no caller is left waiting while another room waits too.
func (r *Registry) QuickMatch(p PlayerInfo) (JoinResult, error) {
	r.mu.Lock()
	for _, code := range r.waiting {
		if room := r.rooms[code]; room.meta.has(p.UserID) {
			r.mu.Unlock()
			return r.rejoin(room, p.UserID), nil
		}
	}
	for _, code := range r.waiting {
		room := r.rooms[code]
		if room.meta.claim(p.UserID, p.Name) {
			r.dequeueLocked(code)
			r.mu.Unlock()
			r.logger.Debug("quick match paired", zap.String("room", code), zap.String("user", p.UserID))
			return r.finishJoin(room, p, false)
		}
	}

	room := r.addRoomLocked(r.newCodeLocked())
	room.meta.claim(p.UserID, p.Name)
	r.enqueueLocked(room)
	r.mu.Unlock()

	return r.finishJoin(room, p, true)
}

// StartAIGame opens a private room with p and an AI opponent at the given level.
// code may be empty to pick one.
func (r *Registry) StartAIGame(p PlayerInfo, level domain.Difficulty, code string) (JoinResult, error) {
	r.mu.Lock()
	if code == "" {
		code = r.newCodeLocked()
	} else {
		var err error
		if code, err = NormalizeCode(code); err != nil {
			r.mu.Unlock()
			return JoinResult{}, err
		}
		if _, taken := r.rooms[code]; taken {
			r.mu.Unlock()
			return JoinResult{}, fmt.Errorf("%w: %s", ErrRoomFull, code)
		}
	}
	room := r.addRoomLocked(code)
	identity := bot.NewIdentity(r.rng, level)
	room.meta.claim(p.UserID, p.Name)
	room.meta.claim(identity.UserID, identity.DisplayName)
	r.mu.Unlock()

	res, err := r.finishJoin(room, p, true)
	if err != nil {
		return res, err
	}
	events, err := room.seatBot(identity)
	if err != nil {
		r.remove(room)
		return JoinResult{}, err
	}
	res.Events = append(res.Events, events...)
	return res, nil
}

// FillWithBot seats an AI player in a waiting room.
func (r *Registry) FillWithBot(code string, level domain.Difficulty) (JoinResult, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return JoinResult{}, err
	}
	r.mu.Lock()
	room, ok := r.rooms[code]
	if !ok {
		r.mu.Unlock()
		return JoinResult{}, ErrRoomNotFound
	}
	if room.meta.seated() != 1 {
		r.mu.Unlock()
		return JoinResult{}, ErrRoomFull
	}
	identity := bot.NewIdentity(r.rng, level)
	room.meta.claim(identity.UserID, identity.DisplayName)
	r.dequeueLocked(code)
	r.mu.Unlock()

	events, err := room.seatBot(identity)
	if err != nil {
		r.mu.Lock()
		room.meta.release(identity.UserID)
		r.mu.Unlock()
		return JoinResult{}, err
	}
	r.notify()
	return JoinResult{Room: room, Events: events}, nil
}

// Leave handles an explicit leave. A waiting room is closed; an in-progress session is
// forfeited.
func (r *Registry) Leave(code, userID string) ([]Event, error) {
	room, closed, err := r.detach(code, userID)
	if err != nil {
		return nil, err
	}
	if closed {
		r.notify()
		return r.leftEvents(userID, false, nil), nil
	}

	room.MarkDisconnected(userID, r.now())
	events, err := room.Forfeit(userID)
	if err != nil && !errors.Is(err, ErrGameAlreadyOver) && !errors.Is(err, ErrGameNotStarted) {
		return nil, err
	}
	if room.Abandoned() {
		r.remove(room)
	}
	return r.leftEvents(userID, false, events), nil
}

// Disconnect records a dropped connection. A waiting room is closed; an in-progress
// player keeps the seat until the transport forfeits them or they rejoin.
func (r *Registry) Disconnect(code, userID string) ([]Event, error) {
	room, closed, err := r.detach(code, userID)
	if err != nil {
		return nil, err
	}
	if closed {
		r.notify()
		return r.leftEvents(userID, false, nil), nil
	}
	room.MarkDisconnected(userID, r.now())
	if room.Abandoned() {
		r.remove(room)
	}
	return r.leftEvents(userID, true, nil), nil
}

// detach closes a waiting room that userID sits in alone and reports whether it did.
func (r *Registry) detach(code, userID string) (*Room, bool, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[code]
	if !ok {
		return nil, false, ErrRoomNotFound
	}
	if !room.meta.has(userID) {
		return nil, false, ErrUnknownPlayer
	}
	if room.meta.seated() > 1 {
		return room, false, nil
	}
	r.dequeueLocked(code)
	delete(r.rooms, code)
	r.logger.Info("waiting room closed", zap.String("room", code), zap.String("user", userID))
	return room, true, nil
}

func (r *Registry) leftEvents(userID string, temporary bool, rest []Event) []Event {
	events := []Event{{
		Kind:    EventPlayerLeft,
		Payload: PlayerLeftPayload{UserID: userID, Temporary: temporary},
	}}
	return append(events, rest...)
}

// ExpireDisconnects forfeits players whose disconnect outlasted grace, per room.
func (r *Registry) ExpireDisconnects(grace time.Duration) map[*Room][]Event {
	now := r.now()
	out := make(map[*Room][]Event)
	for _, room := range r.Rooms() {
		if events := room.ForfeitExpired(now, grace); len(events) > 0 {
			out[room] = events
		}
	}
	return out
}

// Sweep drops finished rooms past the retention window and abandoned rooms. It
// returns the removed codes.
func (r *Registry) Sweep() []string {
	now := r.now()
	var stale []*Room
	for _, room := range r.Rooms() {
		ended := room.EndedAt()
		if room.Abandoned() || (!ended.IsZero() && now.Sub(ended) >= r.retention) {
			stale = append(stale, room)
		}
	}

	codes := make([]string, 0, len(stale))
	for _, room := range stale {
		if r.remove(room) {
			codes = append(codes, room.Code)
		}
	}
	if len(codes) > 0 {
		r.logger.Info("swept rooms", zap.Strings("rooms", codes))
	}
	return codes
}

// ListOpenRooms lists waiting rooms in queue order.
func (r *Registry) ListOpenRooms() []RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	infos := make([]RoomInfo, 0, len(r.waiting))
	for _, code := range r.waiting {
		room := r.rooms[code]
		infos = append(infos, RoomInfo{
			Code:      code,
			Host:      room.meta.host(),
			Players:   room.meta.seated(),
			CreatedAt: room.CreatedAt,
		})
	}
	return infos
}

// joinLocked claims a seat in room for p. It is entered with r.mu held and releases it.
func (r *Registry) joinLocked(room *Room, p PlayerInfo) (JoinResult, error) {
	if room.meta.has(p.UserID) {
		r.mu.Unlock()
		return r.rejoin(room, p.UserID), nil
	}
	if !room.meta.claim(p.UserID, p.Name) {
		r.mu.Unlock()
		return JoinResult{}, ErrRoomFull
	}
	r.dequeueLocked(room.Code)
	r.mu.Unlock()
	return r.finishJoin(room, p, false)
}

func (r *Registry) rejoin(room *Room, userID string) JoinResult {
	if room.Reconnect(userID) {
		r.logger.Info("player reconnected", zap.String("room", room.Code), zap.String("user", userID))
	}
	return JoinResult{Room: room, Rejoined: true}
}

// finishJoin seats p in the game after the registry lock has been released.
func (r *Registry) finishJoin(room *Room, p PlayerInfo, created bool) (JoinResult, error) {
	events, err := room.seat(&domain.Player{ID: p.UserID, Name: p.Name})
	if err != nil {
		r.mu.Lock()
		room.meta.release(p.UserID)
		if room.meta.seated() == 0 {
			r.dequeueLocked(room.Code)
			delete(r.rooms, room.Code)
		}
		r.mu.Unlock()
		return JoinResult{}, err
	}
	r.notify()
	return JoinResult{Room: room, Created: created, Events: events}, nil
}

// remove deletes room if it is still registered under its code.
func (r *Registry) remove(room *Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[room.Code] != room {
		return false
	}
	r.dequeueLocked(room.Code)
	delete(r.rooms, room.Code)
	return true
}

func (r *Registry) notify() {
	if r.onChange != nil {
		r.onChange(r.ListOpenRooms())
	}
}

func (r *Registry) newCodeLocked() string {
	b := make([]byte, RoomCodeLength)
	for {
		for i := range b {
			b[i] = RoomCodeAlphabet[r.rng.Intn(len(RoomCodeAlphabet))]
		}
		if _, taken := r.rooms[string(b)]; !taken {
			return string(b)
		}
	}
}

func (r *Registry) addRoomLocked(code string) *Room {
	room := newRoom(code, r.rules, r.rng.Int63(), r.logger, r.now())
	r.rooms[code] = room
	return room
}

func (r *Registry) enqueueLocked(room *Room) {
	if room.meta.queued {
		return
	}
	room.meta.queued = true
	r.waiting = append(r.waiting, room.Code)
}

func (r *Registry) dequeueLocked(code string) {
	for i, c := range r.waiting {
		if c == code {
			r.waiting = append(r.waiting[:i], r.waiting[i+1:]...)
			if room, ok := r.rooms[code]; ok {
				room.meta.queued = false
			}
			return
		}
	}
}
