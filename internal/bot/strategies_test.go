package bot

import (
	"math/rand"
	"testing"

	"codeduel/internal/domain"
)

func cards(t *testing.T, ids ...string) []domain.Card {
	t.Helper()
	out, err := domain.CardsFromIDs(ids)
	if err != nil {
		t.Fatalf("CardsFromIDs: %v", err)
	}
	return out
}

func viewOf(t *testing.T, hand, played []string) domain.View {
	t.Helper()
	return domain.View{
		PlayerID: "bot",
		Hand:     cards(t, hand...),
		Sequence: cards(t, played...),
		Rules:    domain.DefaultRules(),
	}
}

func assertLegal(t *testing.T, view domain.View, move Move) {
	t.Helper()
	card, err := domain.Lookup(move.CardID)
	if err != nil {
		t.Fatalf("bot played unknown card %q", move.CardID)
	}
	if !domain.NewValidator(view.Sequence).CanInsert(card, move.Index) {
		t.Fatalf("bot played illegal move %+v on %v", move, domain.CardIDs(view.Sequence))
	}
}

func TestEasyBot_CalculateMove_PassesWithoutLegalMove(t *testing.T) {
	view := viewOf(t, []string{"10", "+", ")"}, nil)

	bot := &EasyBot{rng: rand.New(rand.NewSource(1))}
	move, err := bot.CalculateMove(view)
	if err != nil {
		t.Fatalf("CalculateMove failed: %v", err)
	}
	if !move.Pass {
		t.Fatalf("Bot should pass with no playable card, played %+v", move)
	}
}

func TestEasyBot_CalculateMove_AlwaysLegal(t *testing.T) {
	view := viewOf(t, []string{"x", ")", "in", "(", "10", ":", "Skip", "+"}, []string{"for", "x", "in", "range", "(", "10"})

	for seed := int64(0); seed < 30; seed++ {
		bot := &EasyBot{rng: rand.New(rand.NewSource(seed))}
		move, err := bot.CalculateMove(view)
		if err != nil {
			t.Fatalf("CalculateMove failed: %v", err)
		}
		if move.Pass {
			t.Fatal("Bot passed with playable cards")
		}
		assertLegal(t, view, move)
	}
}

func TestMediumBot_CalculateMove_TakesMostPoints(t *testing.T) {
	// x = 1 point, print = 2, def = 3; all may start a statement.
	view := viewOf(t, []string{"x", "print", "def"}, nil)

	bot := &MediumBot{rng: rand.New(rand.NewSource(5))}
	move, err := bot.CalculateMove(view)
	if err != nil {
		t.Fatalf("CalculateMove failed: %v", err)
	}
	if move.CardID != "def" || move.Index != 0 {
		t.Errorf("Bot should have played def at 0, played %+v", move)
	}
}

func TestHardBot_CalculateMove_TakesTheWin(t *testing.T) {
	view := viewOf(t, []string{"x", "def"}, nil)
	view.Score = 48

	bot := &HardBot{rng: rand.New(rand.NewSource(9)), tuning: DefaultTuning}
	move, err := bot.CalculateMove(view)
	if err != nil {
		t.Fatalf("CalculateMove failed: %v", err)
	}
	if move.CardID != "def" {
		t.Errorf("Bot should have finished with def, played %+v", move)
	}
}

func TestHardBot_CalculateMove_AlwaysLegal(t *testing.T) {
	deck := domain.NewDeck(rand.New(rand.NewSource(11)))
	bot := &HardBot{rng: rand.New(rand.NewSource(2)), tuning: DefaultTuning}
	view := domain.View{PlayerID: "bot", Hand: deck.Draw(7), Rules: domain.DefaultRules()}

	for step := 0; step < 25; step++ {
		move, err := bot.CalculateMove(view)
		if err != nil {
			t.Fatalf("CalculateMove failed: %v", err)
		}
		if !move.Pass {
			assertLegal(t, view, move)
			card := domain.MustLookup(move.CardID)
			view.Sequence, _ = domain.Insert(view.Sequence, card, move.Index)
			view.Hand, _, _ = domain.RemoveCard(view.Hand, move.CardID)
		}
		view.Hand = append(view.Hand, deck.Draw(1)...)
	}
}

func TestNewBrain_UnknownLevel(t *testing.T) {
	if _, err := NewBrain("impossible", nil); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}
