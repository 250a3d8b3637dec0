package app

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"codeduel/internal/domain"
)

// Service contains session use-cases operating on domain state. It is not safe for
// concurrent use; every room owns its own Service and rng.
type Service struct {
	rng *rand.Rand
	now func() time.Time
}

// NewService constructs a Service with provided rng or a time-seeded default.
func NewService(rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{rng: rng, now: time.Now}
}

var (
	ErrTooFewPlayers      = errors.New("not enough players to start")
	errGameAlreadyStarted = errors.New("game already started")
)

// SeatPlayer places player in the first open seat. Filling the last seat starts the
// session, so the returned events then include the deal.
func (s *Service) SeatPlayer(game *domain.Game, player *domain.Player) ([]Event, error) {
	switch game.Phase {
	case domain.PhaseGameOver:
		return nil, ErrGameAlreadyOver
	case domain.PhaseInProgress:
		return nil, ErrRoomFull
	}
	if game.Seat(player.ID) >= 0 {
		return nil, ErrAlreadySeated
	}
	seat := domain.OpenSeat(game)
	if seat < 0 {
		return nil, ErrRoomFull
	}
	game.Players[seat] = player

	events := []Event{{
		Kind: EventPlayerJoined,
		Payload: PlayerJoinedPayload{
			UserID: player.ID,
			Name:   player.Name,
			Seat:   seat,
			IsAI:   player.IsAI,
		},
	}}
	if game.SeatedCount() < MinPlayersToStartGame {
		return events, nil
	}
	started, err := s.StartGame(game)
	if err != nil {
		return events, err
	}
	return append(events, started...), nil
}

// StartGame shuffles a fresh deck, deals the opening hands and picks the first turn.
func (s *Service) StartGame(game *domain.Game) ([]Event, error) {
	switch game.Phase {
	case domain.PhaseGameOver:
		return nil, ErrGameAlreadyOver
	case domain.PhaseInProgress:
		return nil, errGameAlreadyStarted
	}
	if game.SeatedCount() < MinPlayersToStartGame {
		return nil, ErrTooFewPlayers
	}

	game.Deck = domain.NewDeck(s.rng)
	game.Sequence = nil
	game.Effect = nil

	events := make([]Event, 0, len(game.Players)+1)
	for _, pl := range game.Players {
		pl.Hand = nil
		pl.Score = 0
		pl.PassStreak = 0
		pl.TurnsSincePower = 0
		pl.PowerPending = false
		game.Draw(pl, game.Rules.StartingHandSize)

		events = append(events, Event{
			Kind: EventHandDealt,
			Payload: HandDealtPayload{
				UserID: pl.ID,
				Hand:   domain.CardIDs(pl.Hand),
			},
			Recipients: []string{pl.ID},
		})
	}

	game.Turn = s.rng.Intn(len(game.Players))
	game.Phase = domain.PhaseInProgress
	game.TurnNumber = 1
	game.StartedAt = s.now()
	game.LastAction = fmt.Sprintf("game started, %s goes first", displayName(game.Current()))

	events = append(events, Event{
		Kind: EventGameStarted,
		Payload: GameStartedPayload{
			Phase:           game.Phase,
			FirstTurnUserID: game.Current().ID,
		},
	})
	return events, nil
}

// PlayCard inserts cardID from the actor's hand at index. A pending block turns the
// attempt into a forced pass instead.
func (s *Service) PlayCard(game *domain.Game, actorUserID, cardID string, index int) ([]Event, error) {
	pl, err := s.actor(game, actorUserID)
	if err != nil {
		return nil, err
	}
	if game.BlockedFor(pl.ID) {
		return s.forcedPass(game, pl), nil
	}

	hand, card, ok := domain.RemoveCard(pl.Hand, cardID)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not in hand", ErrInvalidMove, cardID)
	}
	if !domain.NewValidator(game.Sequence).CanInsert(card, index) {
		return nil, fmt.Errorf("%w: %q cannot go at position %d", ErrInvalidMove, cardID, index)
	}
	seq, err := domain.Insert(game.Sequence, card, index)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMove, err)
	}

	pl.Hand = hand
	game.Sequence = seq
	if card.Category == domain.CategorySpecial {
		// The marker stays in the sequence; the instance goes back into circulation.
		game.Deck.Discard(card)
	}

	points := card.Points
	if game.DoublePointsFor(pl.ID) {
		points *= 2
		consumeEffect(game)
	}
	pl.Score += points
	pl.PassStreak = 0
	game.Draw(pl, 1)

	events := []Event{{Kind: EventCardPlayed}}

	again := false
	opp := game.Opponent(pl.ID)
	switch card.Effect {
	case domain.EffectDraw2:
		events = append(events, s.applyDraw2(game, pl, opp))
	case domain.EffectDiscard2:
		events = append(events, s.applyDiscard2(game, pl, opp))
	case domain.EffectSkip:
		again = true
		events = append(events, Event{
			Kind:    EventEffectApplied,
			Payload: EffectAppliedPayload{UserID: pl.ID, TargetID: opp.ID, Effect: card.Effect},
		})
	}

	if granted, ok := tickPower(game, pl); ok {
		events = append(events, granted)
	}

	game.TurnNumber++
	game.LastAction = fmt.Sprintf("%s played %s", displayName(pl), card.ID)
	if !again {
		advance(game)
	}
	events[0].Payload = CardPlayedPayload{
		UserID:         pl.ID,
		CardID:         card.ID,
		Index:          index,
		Points:         points,
		Score:          pl.Score,
		NextTurnUserID: game.Current().ID,
	}

	if ended, ok := s.checkEnd(game); ok {
		events = append(events, ended)
	}
	return events, nil
}

// PassTurn draws one card for the actor and hands the turn over. Reaching the pass
// limit loses the game.
func (s *Service) PassTurn(game *domain.Game, actorUserID string) ([]Event, error) {
	pl, err := s.actor(game, actorUserID)
	if err != nil {
		return nil, err
	}
	if game.BlockedFor(pl.ID) {
		consumeEffect(game)
	}

	game.Draw(pl, 1)
	pl.PassStreak++
	game.TurnNumber++
	game.LastAction = fmt.Sprintf("%s passed", displayName(pl))

	if limit := game.Rules.MaxConsecutivePasses; limit > 0 && pl.PassStreak >= limit {
		opp := game.Opponent(pl.ID)
		return []Event{
			{
				Kind:    EventTurnPassed,
				Payload: TurnPassedPayload{UserID: pl.ID, PassStreak: pl.PassStreak, NextTurnUserID: opp.ID},
			},
			s.end(game, domain.ReasonTooManyPasses, opp.ID),
		}, nil
	}

	advance(game)
	events := []Event{{
		Kind: EventTurnPassed,
		Payload: TurnPassedPayload{
			UserID:         pl.ID,
			PassStreak:     pl.PassStreak,
			NextTurnUserID: game.Current().ID,
		},
	}}
	if ended, ok := s.checkEnd(game); ok {
		events = append(events, ended)
	}
	return events, nil
}

// forcedPass resolves a blocked play. It draws like a pass but leaves the pass
// streak alone.
func (s *Service) forcedPass(game *domain.Game, pl *domain.Player) []Event {
	consumeEffect(game)
	game.Draw(pl, 1)
	game.TurnNumber++
	game.LastAction = fmt.Sprintf("%s was blocked", displayName(pl))
	advance(game)

	events := []Event{{
		Kind: EventTurnPassed,
		Payload: TurnPassedPayload{
			UserID:         pl.ID,
			Forced:         true,
			PassStreak:     pl.PassStreak,
			NextTurnUserID: game.Current().ID,
		},
	}}
	if ended, ok := s.checkEnd(game); ok {
		events = append(events, ended)
	}
	return events
}

// UsePower spends the actor's pending power. It does not end the turn.
func (s *Service) UsePower(game *domain.Game, actorUserID string, power domain.Power) ([]Event, error) {
	pl, err := s.actor(game, actorUserID)
	if err != nil {
		return nil, err
	}
	if _, ok := domain.ParsePower(string(power)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPower, power)
	}
	if !pl.PowerPending {
		return nil, ErrNoPowerPending
	}

	opp := game.Opponent(pl.ID)
	var private []Event
	switch power {
	case domain.PowerDoublePoints, domain.PowerBlock:
		if game.Effect != nil {
			return nil, ErrEffectActive
		}
		effect := &domain.ActiveEffect{Power: power, Owner: pl.ID, Target: pl.ID, Remaining: game.Rules.DoublePointsPlays}
		if power == domain.PowerBlock {
			effect.Target = opp.ID
			effect.Remaining = 1
		}
		game.Effect = effect
	case domain.PowerPeek:
		private = append(private, Event{
			Kind:       EventPeek,
			Payload:    PeekPayload{OpponentID: opp.ID, OpponentHand: domain.CardIDs(opp.Hand)},
			Recipients: []string{pl.ID},
		})
	}

	pl.PowerPending = false
	pl.TurnsSincePower = 0
	game.LastAction = fmt.Sprintf("%s used %s", displayName(pl), power)

	events := []Event{{
		Kind:    EventPowerUsed,
		Payload: PowerUsedPayload{UserID: pl.ID, Power: power},
	}}
	return append(events, private...), nil
}

// Forfeit ends an in-progress session in favour of the opponent of userID.
func (s *Service) Forfeit(game *domain.Game, userID string) ([]Event, error) {
	switch game.Phase {
	case domain.PhaseGameOver:
		return nil, ErrGameAlreadyOver
	case domain.PhaseWaiting:
		return nil, ErrGameNotStarted
	}
	pl, ok := game.Player(userID)
	if !ok {
		return nil, ErrUnknownPlayer
	}
	game.LastAction = fmt.Sprintf("%s left the game", displayName(pl))
	return []Event{s.end(game, domain.ReasonOpponentDisconnected, game.Opponent(userID).ID)}, nil
}

func (s *Service) actor(game *domain.Game, userID string) (*domain.Player, error) {
	switch game.Phase {
	case domain.PhaseGameOver:
		return nil, ErrGameAlreadyOver
	case domain.PhaseWaiting:
		return nil, ErrGameNotStarted
	}
	pl, ok := game.Player(userID)
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if game.Current().ID != userID {
		return nil, ErrNotYourTurn
	}
	return pl, nil
}

func (s *Service) applyDraw2(game *domain.Game, actor, target *domain.Player) Event {
	drawn := game.Draw(target, 2)
	return Event{
		Kind:    EventEffectApplied,
		Payload: EffectAppliedPayload{UserID: actor.ID, TargetID: target.ID, Effect: domain.EffectDraw2, Count: len(drawn)},
	}
}

// applyDiscard2 removes up to two random cards from target's hand.
func (s *Service) applyDiscard2(game *domain.Game, actor, target *domain.Player) Event {
	n := min(2, len(target.Hand))
	for i := 0; i < n; i++ {
		victim := target.Hand[s.rng.Intn(len(target.Hand))]
		target.Hand, _, _ = domain.RemoveCard(target.Hand, victim.ID)
		game.Deck.Discard(victim)
	}
	return Event{
		Kind:    EventEffectApplied,
		Payload: EffectAppliedPayload{UserID: actor.ID, TargetID: target.ID, Effect: domain.EffectDiscard2, Count: n},
	}
}

// checkEnd applies the win-score and deck-exhaustion conditions.
func (s *Service) checkEnd(game *domain.Game) (Event, bool) {
	if game.Phase == domain.PhaseGameOver {
		return Event{}, false
	}
	for _, pl := range game.Players {
		if pl.Score >= game.Rules.WinScore {
			return s.end(game, domain.ReasonWinCondition, pl.ID), true
		}
	}

	if !game.Deck.Exhausted() {
		return Event{}, false
	}
	a, b := game.Players[0], game.Players[1]
	if len(a.Hand) > 0 || len(b.Hand) > 0 {
		return Event{}, false
	}
	switch {
	case a.Score > b.Score:
		return s.end(game, domain.ReasonDeckExhausted, a.ID), true
	case b.Score > a.Score:
		return s.end(game, domain.ReasonDeckExhausted, b.ID), true
	default:
		return s.end(game, domain.ReasonDeckExhausted, a.ID, b.ID), true
	}
}

func (s *Service) end(game *domain.Game, reason domain.EndReason, winners ...string) Event {
	game.Phase = domain.PhaseGameOver
	game.Reason = reason
	game.Winners = winners
	game.Effect = nil
	game.EndedAt = s.now()

	scores := make(map[string]int, len(game.Players))
	for _, pl := range game.Players {
		scores[pl.ID] = pl.Score
	}
	return Event{
		Kind: EventGameEnded,
		Payload: GameEndedPayload{
			Reason:  reason,
			Winners: winners,
			Scores:  scores,
			Record:  NewGameRecord(game),
		},
	}
}

// tickPower counts a play toward every player's next power. Counters pause while a
// power is pending, and only the actor is granted one.
func tickPower(game *domain.Game, pl *domain.Player) (Event, bool) {
	if game.Rules.PowerThreshold <= 0 {
		return Event{}, false
	}
	for _, p := range game.Players {
		if p != nil && !p.PowerPending {
			p.TurnsSincePower++
		}
	}
	if pl.PowerPending || pl.TurnsSincePower < game.Rules.PowerThreshold {
		return Event{}, false
	}
	pl.PowerPending = true
	return Event{
		Kind:       EventPowerGranted,
		Payload:    PowerGrantedPayload{UserID: pl.ID},
		Recipients: []string{pl.ID},
	}, true
}

func consumeEffect(game *domain.Game) {
	if game.Effect == nil {
		return
	}
	game.Effect.Remaining--
	if game.Effect.Remaining <= 0 {
		game.Effect = nil
	}
}

func advance(game *domain.Game) {
	game.Turn = (game.Turn + 1) % len(game.Players)
}

func displayName(pl *domain.Player) string {
	if pl.Name != "" {
		return pl.Name
	}
	return pl.ID
}
