package domain

import "time"

// Phase represents the lifecycle stage of a session.
type Phase string

const (
	// PhaseWaiting holds one seated player until an opponent (human or AI) joins.
	PhaseWaiting Phase = "waiting_for_opponent"
	// PhaseInProgress is the active game state where cards are played.
	PhaseInProgress Phase = "in_progress"
	// PhaseGameOver is terminal.
	PhaseGameOver Phase = "game_over"
)

// Power is a cooldown-gated ability granted every few plays.
type Power string

const (
	PowerDoublePoints Power = "double_points"
	PowerPeek         Power = "peek"
	PowerBlock        Power = "block"
)

// Powers lists every power in menu order.
var Powers = []Power{PowerDoublePoints, PowerPeek, PowerBlock}

// ParsePower validates a client supplied power name.
func ParsePower(name string) (Power, bool) {
	for _, p := range Powers {
		if string(p) == name {
			return p, true
		}
	}
	return "", false
}

// EndReason explains why a session reached PhaseGameOver.
type EndReason string

const (
	ReasonWinCondition         EndReason = "win_condition"
	ReasonDeckExhausted        EndReason = "deck_exhausted"
	ReasonTooManyPasses        EndReason = "too_many_passes"
	ReasonOpponentDisconnected EndReason = "opponent_disconnected"
)

// Difficulty selects an AI policy.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty maps a client value to a Difficulty, defaulting to medium.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(s) {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return Difficulty(s)
	}
	return DifficultyMedium
}

// Player holds state for a participant in the session.
type Player struct {
	ID         string
	Name       string
	IsAI       bool
	Difficulty Difficulty // set for AI players only
	Hand       []Card
	Score      int
	PassStreak int // consecutive passes

	TurnsSincePower int
	PowerPending    bool
}

// ActiveEffect is the single timed effect a session may carry.
type ActiveEffect struct {
	Power     Power
	Owner     string // player who used the power
	Target    string // player the effect applies to
	Remaining int    // plays (double_points) or actions (block) left
}

// Rules are the tunable constants of a session.
type Rules struct {
	WinScore             int
	StartingHandSize     int
	MaxHandSize          int
	MaxConsecutivePasses int
	PowerThreshold       int
	DoublePointsPlays    int
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		WinScore:             50,
		StartingHandSize:     7,
		MaxHandSize:          10,
		MaxConsecutivePasses: 3,
		PowerThreshold:       5,
		DoublePointsPlays:    2,
	}
}

// Game is the authoritative state of one room's session.
type Game struct {
	Code     string
	Phase    Phase
	Rules    Rules
	Players  [2]*Player // seat order; nil while waiting
	Deck     *Deck
	Sequence []Card
	Turn     int // seat index of the turn owner

	TurnNumber int
	Effect     *ActiveEffect
	LastAction string

	Reason  EndReason
	Winners []string // two entries on a shared win

	StartedAt time.Time
	EndedAt   time.Time
}

// NewGame returns a waiting session for the given room code.
func NewGame(code string, rules Rules) *Game {
	return &Game{
		Code:  code,
		Phase: PhaseWaiting,
		Rules: rules,
	}
}

// Seat returns the seat index of playerID, or -1.
func (g *Game) Seat(playerID string) int {
	for i, p := range g.Players {
		if p != nil && p.ID == playerID {
			return i
		}
	}
	return -1
}

// Player returns the player with the given id.
func (g *Game) Player(playerID string) (*Player, bool) {
	if seat := g.Seat(playerID); seat >= 0 {
		return g.Players[seat], true
	}
	return nil, false
}

// Opponent returns the player facing playerID.
func (g *Game) Opponent(playerID string) *Player {
	switch g.Seat(playerID) {
	case 0:
		return g.Players[1]
	case 1:
		return g.Players[0]
	}
	return nil
}

// Current returns the turn owner.
func (g *Game) Current() *Player {
	return g.Players[g.Turn]
}

// SeatedCount is the number of occupied seats.
func (g *Game) SeatedCount() int {
	n := 0
	for _, p := range g.Players {
		if p != nil {
			n++
		}
	}
	return n
}

// Winner returns the sole winner id, or "" when there is none or the win is shared.
func (g *Game) Winner() string {
	if len(g.Winners) == 1 {
		return g.Winners[0]
	}
	return ""
}

// Draw moves up to n cards from the deck into p's hand without exceeding the hand cap.
// It returns the cards actually drawn.
func (g *Game) Draw(p *Player, n int) []Card {
	if room := g.Rules.MaxHandSize - len(p.Hand); g.Rules.MaxHandSize > 0 && n > room {
		n = max(room, 0)
	}
	if n == 0 {
		return nil
	}
	cards := g.Deck.Draw(n)
	p.Hand = append(p.Hand, cards...)
	return cards
}

// CardsInPlay counts every card instance the session accounts for. It stays equal to
// TotalInstances after every operation.
func (g *Game) CardsInPlay() int {
	total := 0
	if g.Deck != nil {
		total += g.Deck.Remaining() + g.Deck.DiscardCount()
	}
	for _, p := range g.Players {
		if p != nil {
			total += len(p.Hand)
		}
	}
	for _, c := range g.Sequence {
		if c.Category != CategorySpecial {
			total++
		}
	}
	return total
}

// DoublePointsFor reports whether playerID's plays are currently doubled.
func (g *Game) DoublePointsFor(playerID string) bool {
	return g.Effect != nil && g.Effect.Power == PowerDoublePoints && g.Effect.Target == playerID && g.Effect.Remaining > 0
}

// BlockedFor reports whether playerID's next play will be cancelled.
func (g *Game) BlockedFor(playerID string) bool {
	return g.Effect != nil && g.Effect.Power == PowerBlock && g.Effect.Target == playerID && g.Effect.Remaining > 0
}

// View is what a player may legitimately know. It carries no opponent hand.
type View struct {
	PlayerID         string
	Hand             []Card
	Sequence         []Card
	OpponentHandSize int
	DeckRemaining    int
	Score            int
	OpponentScore    int
	DoublePoints     bool
	PowerPending     bool
	Rules            Rules
}

// ViewFor builds playerID's view of the session.
func (g *Game) ViewFor(playerID string) (View, bool) {
	p, ok := g.Player(playerID)
	if !ok {
		return View{}, false
	}
	v := View{
		PlayerID:     p.ID,
		Hand:         append([]Card(nil), p.Hand...),
		Sequence:     append([]Card(nil), g.Sequence...),
		Score:        p.Score,
		DoublePoints: g.DoublePointsFor(p.ID),
		PowerPending: p.PowerPending,
		Rules:        g.Rules,
	}
	if g.Deck != nil {
		v.DeckRemaining = g.Deck.Remaining()
	}
	if opp := g.Opponent(p.ID); opp != nil {
		v.OpponentHandSize = len(opp.Hand)
		v.OpponentScore = opp.Score
	}
	return v, true
}
