package app

import (
	"errors"
	"math/rand"
	"testing"

	"codeduel/internal/domain"
)

func startedGame(t *testing.T, seed int64) (*Service, *domain.Game) {
	t.Helper()
	svc := NewService(rand.New(rand.NewSource(seed)))
	game := domain.NewGame("TEST01", domain.DefaultRules())
	for _, id := range []string{"u1", "u2"} {
		if _, err := svc.SeatPlayer(game, &domain.Player{ID: id, Name: id}); err != nil {
			t.Fatalf("seat %s: %v", id, err)
		}
	}
	return svc, game
}

func cardsOf(t *testing.T, ids ...string) []domain.Card {
	t.Helper()
	cards, err := domain.CardsFromIDs(ids)
	if err != nil {
		t.Fatalf("CardsFromIDs: %v", err)
	}
	return cards
}

func hasEvent(evs []Event, kind EventKind) bool {
	for _, ev := range evs {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

func TestSeatPlayerStartsGame(t *testing.T) {
	svc := NewService(rand.New(rand.NewSource(42)))
	game := domain.NewGame("TEST01", domain.DefaultRules())

	evs, err := svc.SeatPlayer(game, &domain.Player{ID: "u1"})
	if err != nil {
		t.Fatalf("seat u1: %v", err)
	}
	if len(evs) != 1 || game.Phase != domain.PhaseWaiting {
		t.Fatalf("after first seat: %d events, phase %s", len(evs), game.Phase)
	}

	evs, err = svc.SeatPlayer(game, &domain.Player{ID: "u2"})
	if err != nil {
		t.Fatalf("seat u2: %v", err)
	}
	if game.Phase != domain.PhaseInProgress {
		t.Fatalf("phase = %s, want in_progress", game.Phase)
	}

	handEvents := 0
	for _, ev := range evs {
		if ev.Kind == EventHandDealt {
			handEvents++
			payload := ev.Payload.(HandDealtPayload)
			if len(payload.Hand) != 7 {
				t.Fatalf("hand size = %d, want 7", len(payload.Hand))
			}
			if len(ev.Recipients) != 1 || ev.Recipients[0] != payload.UserID {
				t.Fatalf("hand dealt to %v, want only %s", ev.Recipients, payload.UserID)
			}
		}
	}
	if handEvents != 2 {
		t.Fatalf("hand events = %d, want 2", handEvents)
	}
	if !hasEvent(evs, EventGameStarted) {
		t.Fatal("expected game started event")
	}
	if got := game.CardsInPlay(); got != domain.TotalInstances() {
		t.Fatalf("cards in play = %d, want %d", got, domain.TotalInstances())
	}
}

func TestSeatPlayerRejects(t *testing.T) {
	svc := NewService(rand.New(rand.NewSource(1)))
	game := domain.NewGame("TEST01", domain.DefaultRules())
	if _, err := svc.SeatPlayer(game, &domain.Player{ID: "u1"}); err != nil {
		t.Fatalf("seat u1: %v", err)
	}
	if _, err := svc.SeatPlayer(game, &domain.Player{ID: "u1"}); !errors.Is(err, ErrAlreadySeated) {
		t.Fatalf("duplicate seat err = %v, want ErrAlreadySeated", err)
	}
	if _, err := svc.SeatPlayer(game, &domain.Player{ID: "u2"}); err != nil {
		t.Fatalf("seat u2: %v", err)
	}
	if _, err := svc.SeatPlayer(game, &domain.Player{ID: "u3"}); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("third seat err = %v, want ErrRoomFull", err)
	}
}

func TestActionsBeforeStart(t *testing.T) {
	svc := NewService(rand.New(rand.NewSource(1)))
	game := domain.NewGame("TEST01", domain.DefaultRules())
	game.Players[0] = &domain.Player{ID: "u1"}

	if _, err := svc.PlayCard(game, "u1", "for", 0); !errors.Is(err, ErrGameNotStarted) {
		t.Fatalf("PlayCard err = %v, want ErrGameNotStarted", err)
	}
	if _, err := svc.Forfeit(game, "u1"); !errors.Is(err, ErrGameNotStarted) {
		t.Fatalf("Forfeit err = %v, want ErrGameNotStarted", err)
	}
}

func TestPlayCardScoresAndAdvances(t *testing.T) {
	svc, game := startedGame(t, 7)
	cur := game.Current()
	opp := game.Opponent(cur.ID)
	cur.Hand = cardsOf(t, "for", "x")

	evs, err := svc.PlayCard(game, cur.ID, "for", 0)
	if err != nil {
		t.Fatalf("PlayCard: %v", err)
	}
	if cur.Score != 2 {
		t.Fatalf("score = %d, want 2", cur.Score)
	}
	if game.Current() != opp {
		t.Fatal("turn did not pass to the opponent")
	}
	if len(cur.Hand) != 2 {
		t.Fatalf("hand size = %d, want 2 after play and draw", len(cur.Hand))
	}
	played := evs[0].Payload.(CardPlayedPayload)
	if played.CardID != "for" || played.NextTurnUserID != opp.ID || played.Points != 2 {
		t.Fatalf("unexpected payload %+v", played)
	}
	if got := domain.CardIDs(game.Sequence); len(got) != 1 || got[0] != "for" {
		t.Fatalf("sequence = %v", got)
	}
}

func TestPlayCardErrors(t *testing.T) {
	svc, game := startedGame(t, 7)
	cur := game.Current()
	opp := game.Opponent(cur.ID)
	cur.Hand = cardsOf(t, "for", "10")
	opp.Hand = cardsOf(t, "for")

	tests := []struct {
		name   string
		player string
		card   string
		index  int
		want   error
	}{
		{name: "not your turn", player: opp.ID, card: "for", index: 0, want: ErrNotYourTurn},
		{name: "card not in hand", player: cur.ID, card: "while", index: 0, want: ErrInvalidMove},
		{name: "illegal placement", player: cur.ID, card: "10", index: 0, want: ErrInvalidMove},
		{name: "index out of range", player: cur.ID, card: "for", index: 3, want: ErrInvalidMove},
		{name: "unknown player", player: "ghost", card: "for", index: 0, want: ErrUnknownPlayer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.PlayCard(game, tt.player, tt.card, tt.index); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if len(cur.Hand) != 2 || len(game.Sequence) != 0 {
		t.Fatal("rejected plays changed state")
	}
}

func TestSpecialEffects(t *testing.T) {
	tests := []struct {
		name         string
		card         string
		oppHand      []string
		wantOppHand  int
		wantSameTurn bool
	}{
		{name: "skip keeps the turn", card: "Skip", oppHand: []string{"x"}, wantOppHand: 1, wantSameTurn: true},
		{name: "draw 2", card: "Draw 2", oppHand: []string{"x"}, wantOppHand: 3},
		{name: "draw 2 respects cap", card: "Draw 2", oppHand: []string{"x", "x", "x", "x", "x", "x", "x", "x", "x"}, wantOppHand: 10},
		{name: "discard 2", card: "Discard 2", oppHand: []string{"x", "i", "n"}, wantOppHand: 1},
		{name: "discard 2 short hand", card: "Discard 2", oppHand: []string{"x"}, wantOppHand: 0},
		{name: "wild has no effect", card: "Wild", oppHand: []string{"x"}, wantOppHand: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, game := startedGame(t, 3)
			cur := game.Current()
			opp := game.Opponent(cur.ID)
			cur.Hand = cardsOf(t, tt.card)
			opp.Hand = cardsOf(t, tt.oppHand...)
			game.Sequence = cardsOf(t, "for")
			discards := game.Deck.DiscardCount()

			if _, err := svc.PlayCard(game, cur.ID, tt.card, 1); err != nil {
				t.Fatalf("PlayCard: %v", err)
			}
			if len(opp.Hand) != tt.wantOppHand {
				t.Fatalf("opponent hand = %d, want %d", len(opp.Hand), tt.wantOppHand)
			}
			if same := game.Current() == cur; same != tt.wantSameTurn {
				t.Fatalf("same turn = %t, want %t", same, tt.wantSameTurn)
			}
			if game.Deck.DiscardCount() <= discards {
				t.Fatal("special card did not go to the discard pile")
			}
			if cur.Score != 0 {
				t.Fatalf("special card scored %d", cur.Score)
			}
		})
	}
}

func TestDoublePointsScoring(t *testing.T) {
	svc, game := startedGame(t, 5)
	cur := game.Current()
	cur.PowerPending = true
	game.Sequence = cardsOf(t, "for")
	cur.Hand = cardsOf(t, "Skip", "x", "in")

	if _, err := svc.UsePower(game, cur.ID, domain.PowerDoublePoints); err != nil {
		t.Fatalf("UsePower: %v", err)
	}
	// Skip keeps the turn and uses up the first doubled play.
	if _, err := svc.PlayCard(game, cur.ID, "Skip", 1); err != nil {
		t.Fatalf("play Skip: %v", err)
	}
	if _, err := svc.PlayCard(game, cur.ID, "x", 2); err != nil {
		t.Fatalf("play x: %v", err)
	}
	if cur.Score != 2 {
		t.Fatalf("score = %d, want 2 (x doubled)", cur.Score)
	}
	if game.Effect != nil {
		t.Fatalf("effect should be spent, got %+v", game.Effect)
	}
}

func TestBlockForcesPass(t *testing.T) {
	svc, game := startedGame(t, 11)
	cur := game.Current()
	opp := game.Opponent(cur.ID)
	cur.PowerPending = true
	cur.Hand = cardsOf(t, "for")
	opp.Hand = cardsOf(t, "while")
	opp.PassStreak = 1

	if _, err := svc.UsePower(game, cur.ID, domain.PowerBlock); err != nil {
		t.Fatalf("UsePower: %v", err)
	}
	if _, err := svc.PlayCard(game, cur.ID, "for", 0); err != nil {
		t.Fatalf("PlayCard: %v", err)
	}

	evs, err := svc.PlayCard(game, opp.ID, "while", 0)
	if err != nil {
		t.Fatalf("blocked PlayCard: %v", err)
	}
	passed, ok := evs[0].Payload.(TurnPassedPayload)
	if !ok || !passed.Forced {
		t.Fatalf("expected a forced pass, got %+v", evs[0])
	}
	if opp.PassStreak != 1 {
		t.Fatalf("forced pass changed the pass streak to %d", opp.PassStreak)
	}
	if len(game.Sequence) != 1 {
		t.Fatal("blocked card was played")
	}
	if game.Effect != nil || game.Current() != cur {
		t.Fatal("block was not consumed or turn did not return")
	}
}

func TestUsePowerErrors(t *testing.T) {
	svc, game := startedGame(t, 13)
	cur := game.Current()

	if _, err := svc.UsePower(game, cur.ID, domain.PowerPeek); !errors.Is(err, ErrNoPowerPending) {
		t.Fatalf("err = %v, want ErrNoPowerPending", err)
	}
	cur.PowerPending = true
	if _, err := svc.UsePower(game, cur.ID, "teleport"); !errors.Is(err, ErrUnknownPower) {
		t.Fatalf("err = %v, want ErrUnknownPower", err)
	}
	game.Effect = &domain.ActiveEffect{Power: domain.PowerBlock, Owner: "x", Target: cur.ID, Remaining: 1}
	if _, err := svc.UsePower(game, cur.ID, domain.PowerDoublePoints); !errors.Is(err, ErrEffectActive) {
		t.Fatalf("err = %v, want ErrEffectActive", err)
	}
	if !cur.PowerPending {
		t.Fatal("rejected power was consumed")
	}
}

func TestPeekIsPrivate(t *testing.T) {
	svc, game := startedGame(t, 17)
	cur := game.Current()
	opp := game.Opponent(cur.ID)
	cur.PowerPending = true
	// Peek never occupies the effect slot.
	game.Effect = &domain.ActiveEffect{Power: domain.PowerDoublePoints, Owner: opp.ID, Target: opp.ID, Remaining: 1}

	evs, err := svc.UsePower(game, cur.ID, domain.PowerPeek)
	if err != nil {
		t.Fatalf("UsePower: %v", err)
	}
	for _, ev := range evs {
		if ev.Kind != EventPeek {
			if _, leaks := ev.Payload.(PeekPayload); leaks {
				t.Fatal("peek payload broadcast")
			}
			continue
		}
		if len(ev.Recipients) != 1 || ev.Recipients[0] != cur.ID {
			t.Fatalf("peek sent to %v", ev.Recipients)
		}
		if got := ev.Payload.(PeekPayload).OpponentHand; len(got) != len(opp.Hand) {
			t.Fatalf("peek revealed %d cards, opponent holds %d", len(got), len(opp.Hand))
		}
		return
	}
	t.Fatal("no peek event")
}

func TestPowerGrantedAtThreshold(t *testing.T) {
	svc, game := startedGame(t, 19)
	cur := game.Current()
	cur.TurnsSincePower = game.Rules.PowerThreshold - 1
	cur.Hand = cardsOf(t, "for")

	evs, err := svc.PlayCard(game, cur.ID, "for", 0)
	if err != nil {
		t.Fatalf("PlayCard: %v", err)
	}
	if !cur.PowerPending || !hasEvent(evs, EventPowerGranted) {
		t.Fatal("power was not granted at the threshold")
	}
}

func TestPlayTicksBothPowerCounters(t *testing.T) {
	svc, game := startedGame(t, 29)
	cur := game.Current()
	opp := game.Opponent(cur.ID)
	cur.Hand = cardsOf(t, "for")

	if _, err := svc.PlayCard(game, cur.ID, "for", 0); err != nil {
		t.Fatalf("PlayCard: %v", err)
	}
	if cur.TurnsSincePower != 1 || opp.TurnsSincePower != 1 {
		t.Fatalf("counters = actor %d, opponent %d, want 1 and 1", cur.TurnsSincePower, opp.TurnsSincePower)
	}
}

func TestPowerGrantedOnlyToActor(t *testing.T) {
	svc, game := startedGame(t, 31)
	cur := game.Current()
	opp := game.Opponent(cur.ID)
	cur.Hand = cardsOf(t, "for")
	opp.TurnsSincePower = game.Rules.PowerThreshold - 1

	evs, err := svc.PlayCard(game, cur.ID, "for", 0)
	if err != nil {
		t.Fatalf("PlayCard: %v", err)
	}
	if opp.PowerPending || hasEvent(evs, EventPowerGranted) {
		t.Fatal("power granted to the player who did not act")
	}
	if opp.TurnsSincePower != game.Rules.PowerThreshold {
		t.Fatalf("opponent counter = %d, want %d", opp.TurnsSincePower, game.Rules.PowerThreshold)
	}

	// The opponent's own next play grants it.
	opp.Hand = cardsOf(t, "x")
	evs, err = svc.PlayCard(game, opp.ID, "x", 1)
	if err != nil {
		t.Fatalf("PlayCard: %v", err)
	}
	if !opp.PowerPending || !hasEvent(evs, EventPowerGranted) {
		t.Fatal("power was not granted on the opponent's play")
	}
}

func TestPendingPowerPausesCounter(t *testing.T) {
	svc, game := startedGame(t, 37)
	cur := game.Current()
	opp := game.Opponent(cur.ID)
	cur.Hand = cardsOf(t, "for")
	opp.PowerPending = true
	opp.TurnsSincePower = 2

	if _, err := svc.PlayCard(game, cur.ID, "for", 0); err != nil {
		t.Fatalf("PlayCard: %v", err)
	}
	if opp.TurnsSincePower != 2 {
		t.Fatalf("opponent counter = %d, want 2 while a power is pending", opp.TurnsSincePower)
	}
	if cur.TurnsSincePower != 1 {
		t.Fatalf("actor counter = %d, want 1", cur.TurnsSincePower)
	}
}

func TestTooManyPasses(t *testing.T) {
	svc, game := startedGame(t, 23)
	first := game.Current()
	second := game.Opponent(first.ID)

	var evs []Event
	for i := 0; i < 5; i++ {
		var err error
		evs, err = svc.PassTurn(game, game.Current().ID)
		if err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}
	if game.Phase != domain.PhaseGameOver || game.Reason != domain.ReasonTooManyPasses {
		t.Fatalf("phase %s reason %s, want game over by passes", game.Phase, game.Reason)
	}
	if game.Winner() != second.ID {
		t.Fatalf("winner = %q, want %q", game.Winner(), second.ID)
	}
	if !hasEvent(evs, EventGameEnded) {
		t.Fatal("expected game ended event")
	}
	if _, err := svc.PassTurn(game, game.Current().ID); !errors.Is(err, ErrGameAlreadyOver) {
		t.Fatalf("err = %v, want ErrGameAlreadyOver", err)
	}
}

func TestWinCondition(t *testing.T) {
	svc, game := startedGame(t, 29)
	cur := game.Current()
	cur.Score = game.Rules.WinScore - 1
	cur.Hand = cardsOf(t, "for")

	evs, err := svc.PlayCard(game, cur.ID, "for", 0)
	if err != nil {
		t.Fatalf("PlayCard: %v", err)
	}
	if game.Phase != domain.PhaseGameOver || game.Winner() != cur.ID || game.Reason != domain.ReasonWinCondition {
		t.Fatalf("game not won: phase %s winner %q reason %s", game.Phase, game.Winner(), game.Reason)
	}
	ended := evs[len(evs)-1].Payload.(GameEndedPayload)
	if ended.Record.FinalCode != "for" || ended.Scores[cur.ID] != cur.Score {
		t.Fatalf("unexpected record %+v", ended.Record)
	}
	if _, err := svc.PlayCard(game, cur.ID, "x", 1); !errors.Is(err, ErrGameAlreadyOver) {
		t.Fatalf("err = %v, want ErrGameAlreadyOver", err)
	}
}

func TestDeckExhaustedSharedWin(t *testing.T) {
	svc, game := startedGame(t, 31)
	cur := game.Current()
	opp := game.Opponent(cur.ID)
	game.Deck.Draw(game.Deck.Remaining())
	cur.Hand = cardsOf(t, "for")
	opp.Hand = nil
	cur.Score, opp.Score = 8, 10

	if _, err := svc.PlayCard(game, cur.ID, "for", 0); err != nil {
		t.Fatalf("PlayCard: %v", err)
	}
	if game.Phase != domain.PhaseGameOver || game.Reason != domain.ReasonDeckExhausted {
		t.Fatalf("phase %s reason %s, want deck exhausted", game.Phase, game.Reason)
	}
	if len(game.Winners) != 2 {
		t.Fatalf("winners = %v, want both players", game.Winners)
	}
}

func TestForfeit(t *testing.T) {
	svc, game := startedGame(t, 37)
	cur := game.Current()
	opp := game.Opponent(cur.ID)

	if _, err := svc.Forfeit(game, cur.ID); err != nil {
		t.Fatalf("Forfeit: %v", err)
	}
	if game.Winner() != opp.ID || game.Reason != domain.ReasonOpponentDisconnected {
		t.Fatalf("winner %q reason %s", game.Winner(), game.Reason)
	}
	if _, err := svc.Forfeit(game, opp.ID); !errors.Is(err, ErrGameAlreadyOver) {
		t.Fatalf("err = %v, want ErrGameAlreadyOver", err)
	}
}

// Random legal play must conserve cards, keep the sequence valid and alternate turns
// unless a Skip was played.
func TestRandomPlayKeepsInvariants(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		svc, game := startedGame(t, seed)
		rng := rand.New(rand.NewSource(seed))

		for step := 0; step < 400 && game.Phase == domain.PhaseInProgress; step++ {
			cur := game.Current()
			playable := PlayableCards(game.Sequence, cur.Hand)

			var evs []Event
			var err error
			skipped := false
			if len(playable) == 0 || rng.Intn(10) == 0 {
				evs, err = svc.PassTurn(game, cur.ID)
			} else {
				slots := SlotOrder(playable)
				slot := slots[rng.Intn(len(slots))]
				card := playable[slot][rng.Intn(len(playable[slot]))]
				skipped = card == "Skip"
				evs, err = svc.PlayCard(game, cur.ID, card, slot)
			}
			if err != nil {
				t.Fatalf("seed %d step %d: %v", seed, step, err)
			}
			if got := game.CardsInPlay(); got != domain.TotalInstances() {
				t.Fatalf("seed %d step %d: cards in play = %d, want %d", seed, step, got, domain.TotalInstances())
			}
			if !domain.Analyze(game.Sequence).IsValid {
				t.Fatalf("seed %d step %d: invalid sequence %v", seed, step, domain.CardIDs(game.Sequence))
			}
			for _, pl := range game.Players {
				if len(pl.Hand) > game.Rules.MaxHandSize {
					t.Fatalf("seed %d step %d: hand of %d cards", seed, step, len(pl.Hand))
				}
			}
			if game.Phase == domain.PhaseInProgress && !skipped && game.Current() == cur {
				t.Fatalf("seed %d step %d: turn did not alternate (%v)", seed, step, evs)
			}
		}
	}
}
