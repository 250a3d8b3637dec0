package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/mitchellh/mapstructure"

	"codeduel/internal/app"
	"codeduel/internal/domain"
)

// MatchState holds the runtime state of one Nakama match. The session itself lives
// in the registry's Room; the match only relays intents and frames.
type MatchState struct {
	Code         string                      `json:"code"`
	Room         *app.Room                   `json:"-"`
	Presences    map[string]runtime.Presence `json:"-"` // Map UserId -> Presence for targeted messaging
	Left         map[string]bool             `json:"-"` // users who left explicitly
	Tick         int64                       `json:"tick"`
	BotWaitUntil int64                       `json:"bot_wait_until"` // Tick when the bot should act
	WaitingSince int64                       `json:"waiting_since"`  // Tick when a lone human started waiting
	EndedTick    int64                       `json:"ended_tick"`
}

type matchParams struct {
	Code string `mapstructure:"code"`
}

type matchHandler struct {
	m   *Module
	rng *rand.Rand
}

func newMatchHandler(m *Module) *matchHandler {
	return &matchHandler{m: m, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// ticks converts a duration to match ticks, rounding down.
func ticks(d time.Duration) int64 {
	return int64(d * tickRate / time.Second)
}

// MatchInit is called when the match is created for a registry room.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	var p matchParams
	if err := mapstructure.Decode(params, &p); err != nil {
		logger.Error("MatchInit: Invalid params: %v", err)
		return nil, 0, ""
	}
	room, err := mh.m.registry.Get(p.Code)
	if err != nil {
		logger.Error("MatchInit: Room %q: %v", p.Code, err)
		return nil, 0, ""
	}

	state := &MatchState{
		Code:      room.Code,
		Room:      room,
		Presences: make(map[string]runtime.Presence),
		Left:      make(map[string]bool),
	}
	label, err := encodeLabel(room.Label())
	if err != nil {
		logger.Error("MatchInit: %v", err)
		return nil, 0, ""
	}
	logger.Debug("MatchInit: Match bound to room %s.", room.Code)
	return state, tickRate, label
}

// MatchJoinAttempt only admits players the registry already seated.
func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}
	if !matchState.Room.Seated(presence.GetUserId()) {
		return state, false, "not seated in this room"
	}
	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		matchState.Presences[p.GetUserId()] = p
		delete(matchState.Left, p.GetUserId())
		if matchState.Room.Reconnect(p.GetUserId()) {
			logger.Info("MatchJoin: User %s reconnected to room %s.", p.GetUserId(), matchState.Code)
		}
	}

	mh.updateLabel(matchState, dispatcher, logger)
	mh.broadcastSnapshots(matchState, dispatcher, logger)
	return matchState
}

// MatchLeave is called when one or more players leave the match. A dropped player
// keeps the seat until the disconnect grace runs out.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		userID := p.GetUserId()
		delete(matchState.Presences, userID)
		if matchState.Left[userID] {
			continue
		}
		events, err := mh.m.registry.Disconnect(matchState.Code, userID)
		if err != nil {
			logger.Debug("MatchLeave: Disconnect %s: %v", userID, err)
			continue
		}
		mh.dispatch(ctx, matchState, dispatcher, logger, events)
	}

	if _, err := mh.m.registry.Get(matchState.Code); err != nil {
		logger.Info("MatchLeave: Room %s closed, terminating match.", matchState.Code)
		return nil
	}
	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}
	matchState.Tick = tick

	for _, msg := range messages {
		mh.handleMessage(ctx, matchState, dispatcher, logger, msg)
	}

	if grace := mh.m.cfg.Rooms.DisconnectGrace; grace > 0 {
		if events := matchState.Room.ForfeitExpired(time.Now(), grace); len(events) > 0 {
			mh.dispatch(ctx, matchState, dispatcher, logger, events)
		}
	}

	mh.processBots(ctx, matchState, dispatcher, logger)

	if mh.shouldTerminate(matchState) {
		logger.Info("MatchLoop: Terminating match for room %s.", matchState.Code)
		mh.m.registry.Sweep()
		return nil
	}
	return matchState
}

// shouldTerminate ends the match once the session is over and either nobody is
// watching or the room outlived its retention. A room the registry dropped ends too.
func (mh *matchHandler) shouldTerminate(state *MatchState) bool {
	if _, err := mh.m.registry.Get(state.Code); err != nil {
		return true
	}
	if state.Room.Phase() != domain.PhaseGameOver {
		return false
	}
	if state.EndedTick == 0 {
		state.EndedTick = state.Tick
	}
	return len(state.Presences) == 0 || state.Tick-state.EndedTick >= ticks(mh.m.cfg.Rooms.Retention)
}

func (mh *matchHandler) handleMessage(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()
	kind, ok := intentOpCodes[msg.GetOpCode()]
	if !ok {
		logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		mh.sendError(state, dispatcher, logger, senderID, fmt.Errorf("%w: unknown opcode %d", app.ErrInvalidMove, msg.GetOpCode()))
		return
	}

	var in app.Intent
	if data := msg.GetData(); len(data) > 0 {
		if err := json.Unmarshal(data, &in); err != nil {
			mh.sendError(state, dispatcher, logger, senderID, fmt.Errorf("%w: malformed payload", app.ErrInvalidMove))
			return
		}
	}
	in.Type = kind

	switch kind {
	case app.IntentRequestState:
		mh.sendSnapshot(state, dispatcher, logger, senderID)
	case app.IntentLeaveRoom:
		events, err := mh.m.registry.Leave(state.Code, senderID)
		if err != nil {
			mh.sendError(state, dispatcher, logger, senderID, err)
			return
		}
		state.Left[senderID] = true
		mh.dispatch(ctx, state, dispatcher, logger, events)
		if p, ok := state.Presences[senderID]; ok {
			if err := dispatcher.MatchKick([]runtime.Presence{p}); err != nil {
				logger.Warn("handleMessage: Failed to kick %s: %v", senderID, err)
			}
		}
	default:
		events, err := state.Room.Apply(senderID, in)
		if err != nil {
			logger.Debug("handleMessage: User %s %s rejected: %v", senderID, kind, err)
			mh.sendError(state, dispatcher, logger, senderID, err)
			return
		}
		mh.dispatch(ctx, state, dispatcher, logger, events)
	}
}

func (mh *matchHandler) processBots(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	room := state.Room

	// Auto-fill a waiting room with a bot once the lone human waited long enough.
	if delay := mh.m.cfg.Bots.AutoFillDelay; mh.m.cfg.Bots.Enabled && delay > 0 && room.Phase() == domain.PhaseWaiting && len(state.Presences) > 0 {
		if state.WaitingSince == 0 {
			state.WaitingSince = state.Tick
			logger.Debug("processBots: Single player detected, starting auto-fill timer.")
		}
		if state.Tick-state.WaitingSince >= ticks(delay) {
			state.WaitingSince = 0
			res, err := mh.m.registry.FillWithBot(state.Code, mh.m.cfg.DefaultDifficulty())
			if err != nil {
				logger.Warn("processBots: Auto-fill for room %s failed: %v", state.Code, err)
				return
			}
			logger.Info("processBots: Added a bot to room %s.", state.Code)
			mh.dispatch(ctx, state, dispatcher, logger, res.Events)
		}
	} else {
		state.WaitingSince = 0
	}

	if !room.BotToMove() {
		state.BotWaitUntil = 0
		return
	}
	if state.BotWaitUntil == 0 {
		state.BotWaitUntil = state.Tick + mh.botDelay()
	}
	if state.Tick < state.BotWaitUntil {
		return
	}
	state.BotWaitUntil = 0

	events, err := room.StepBot()
	if err != nil {
		logger.Error("processBots: Bot move in room %s failed: %v", state.Code, err)
		return
	}
	mh.dispatch(ctx, state, dispatcher, logger, events)
}

// botDelay picks a think time between the configured bounds, in ticks.
func (mh *matchHandler) botDelay() int64 {
	lo, hi := mh.m.cfg.Bots.MinDelay, mh.m.cfg.Bots.MaxDelay
	d := lo
	if hi > lo {
		d += time.Duration(mh.rng.Int63n(int64(hi - lo + 1)))
	}
	if t := ticks(d); t > 0 {
		return t
	}
	return 1
}

// dispatch relays events to their recipients and then refreshes every viewer.
func (mh *matchHandler) dispatch(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, events []app.Event) {
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		if ev.Kind == app.EventGameEnded {
			mh.recordGame(ctx, state, logger, ev)
		}
		data, err := json.Marshal(app.EventFrame(ev))
		if err != nil {
			logger.Error("Failed to marshal event %v: %v", ev.Kind, err)
			continue
		}
		mh.send(state, dispatcher, logger, eventOpCodes[ev.Kind], data, ev.Recipients)
	}
	mh.updateLabel(state, dispatcher, logger)
	mh.broadcastSnapshots(state, dispatcher, logger)
}

func (mh *matchHandler) recordGame(ctx context.Context, state *MatchState, logger runtime.Logger, ev app.Event) {
	p, ok := ev.Payload.(app.GameEndedPayload)
	if !ok || mh.m.results == nil {
		return
	}
	if err := mh.m.results.RecordGame(ctx, p.Record); err != nil {
		logger.Error("Failed to record game for room %s: %v", state.Code, err)
	}
}

// send delivers data to recipients, or to every presence when recipients is empty.
func (mh *matchHandler) send(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, opCode int64, data []byte, recipients []string) {
	var targets []runtime.Presence
	if len(recipients) > 0 {
		for _, uid := range recipients {
			if p, ok := state.Presences[uid]; ok {
				targets = append(targets, p)
			}
		}
		// Intended recipients that are not connected (bots, dropped players) must not
		// turn a private message into a broadcast.
		if len(targets) == 0 {
			return
		}
	}
	if err := dispatcher.BroadcastMessage(opCode, data, targets, nil, true); err != nil {
		logger.Warn("Failed to send opcode %d: %v", opCode, err)
	}
}

func (mh *matchHandler) broadcastSnapshots(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	for userID := range state.Presences {
		mh.sendSnapshot(state, dispatcher, logger, userID)
	}
}

func (mh *matchHandler) sendSnapshot(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string) {
	data, err := json.Marshal(app.StateFrame(state.Room.Snapshot(userID)))
	if err != nil {
		logger.Error("Failed to marshal snapshot: %v", err)
		return
	}
	mh.send(state, dispatcher, logger, OpState, data, []string{userID})
}

// sendError reports a rejected intent to its sender only.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, err error) {
	data, mErr := json.Marshal(app.ErrorFrame(err))
	if mErr != nil {
		logger.Error("Failed to marshal error frame: %v", mErr)
		return
	}
	if _, ok := state.Presences[userID]; !ok {
		logger.Warn("Cannot send error to %s: Presence not found", userID)
		return
	}
	mh.send(state, dispatcher, logger, OpError, data, []string{userID})
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := encodeLabel(state.Room.Label())
	if err != nil {
		logger.Error("UpdateLabel: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
	}
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	logger.Debug("MatchTerminate: Match terminated with %d seconds grace", graceSeconds)
	mh.m.registry.Sweep()
	return state
}

// signalEvent carries events produced outside the match loop, by RPCs, into it.
type signalEvent struct {
	Kind       app.EventKind   `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Recipients []string        `json:"recipients,omitempty"`
}

func encodeSignal(events []app.Event) (string, error) {
	out := make([]signalEvent, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return "", fmt.Errorf("failed to marshal %s payload: %w", ev.Kind, err)
		}
		out = append(out, signalEvent{Kind: ev.Kind, Payload: payload, Recipients: ev.Recipients})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MatchSignal relays join events from RPCs and refreshes every viewer.
func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, "state not found"
	}
	var events []signalEvent
	if err := json.Unmarshal([]byte(data), &events); err != nil {
		logger.Warn("MatchSignal: Invalid signal: %v", err)
		return state, "invalid signal"
	}
	for _, ev := range events {
		frame, err := json.Marshal(app.Frame{Type: string(ev.Kind), Payload: ev.Payload})
		if err != nil {
			continue
		}
		mh.send(matchState, dispatcher, logger, eventOpCodes[ev.Kind], frame, ev.Recipients)
	}
	mh.updateLabel(matchState, dispatcher, logger)
	mh.broadcastSnapshots(matchState, dispatcher, logger)
	return matchState, "ok"
}
