package models

import "time"

// Ticket is one purchased combination of numbers for a single drawing.
// The winner fields are written once, when the drawing it was sold against is settled.
type Ticket struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	MainNumbers   []int      `json:"mainNumbers"`  // 5 numbers from 1-50
	WorldNumbers  []int      `json:"worldNumbers"` // 2 numbers from 1-12
	Cost          int64      `json:"cost"`
	DrawingDate   time.Time  `json:"drawingDate"` // links the ticket to its Drawing
	IsWinner      bool       `json:"isWinner"`
	WinningClass  int        `json:"winningClass,omitempty"` // 1-12, 1 = jackpot
	WinningAmount int64      `json:"winningAmount,omitempty"`
	SettledAt     *time.Time `json:"settledAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Clone returns a deep copy of the ticket.
func (t *Ticket) Clone() *Ticket {
	c := *t
	c.MainNumbers = append([]int(nil), t.MainNumbers...)
	c.WorldNumbers = append([]int(nil), t.WorldNumbers...)
	if t.SettledAt != nil {
		settledAt := *t.SettledAt
		c.SettledAt = &settledAt
	}
	return &c
}

// DisplayOverrides are operator-provided strings shown instead of the computed
// drawing title and date. They have no effect on the drawing itself.
type DisplayOverrides struct {
	ManualTitle string `json:"manualTitle,omitempty"`
	ManualDate  string `json:"manualDate,omitempty"`
	ManualTime  string `json:"manualTime,omitempty"`
}

// Drawing is one lottery cycle. Exactly one drawing is active (open for ticket sales) at a time.
type Drawing struct {
	ID               string            `json:"id"`
	Date             time.Time         `json:"date"`
	MainNumbers      []int             `json:"mainNumbers"`
	WorldNumbers     []int             `json:"worldNumbers"`
	JackpotAmount    int64             `json:"jackpotAmount"`    // value shown to users
	RealJackpot      int64             `json:"realJackpot"`      // 40% of this drawing's ticket revenue
	SimulatedJackpot int64             `json:"simulatedJackpot"` // operator override
	IsActive         bool              `json:"isActive"`
	WinnersByClass   map[int]int       `json:"winnersByClass"`
	DisplayOverrides *DisplayOverrides `json:"displayOverrides,omitempty"`
	DrawnAt          *time.Time        `json:"drawnAt,omitempty"`
}

// Clone returns a deep copy of the drawing.
func (d *Drawing) Clone() *Drawing {
	c := *d
	c.MainNumbers = append([]int{}, d.MainNumbers...)
	c.WorldNumbers = append([]int{}, d.WorldNumbers...)
	c.WinnersByClass = make(map[int]int, len(d.WinnersByClass))
	for class, count := range d.WinnersByClass {
		c.WinnersByClass[class] = count
	}
	if d.DisplayOverrides != nil {
		overrides := *d.DisplayOverrides
		c.DisplayOverrides = &overrides
	}
	if d.DrawnAt != nil {
		drawnAt := *d.DrawnAt
		c.DrawnAt = &drawnAt
	}
	return &c
}

// IsCompleted reports whether the drawing has been closed and its numbers assigned.
func (d *Drawing) IsCompleted() bool {
	return !d.IsActive && len(d.MainNumbers) > 0
}

// DrawNumbers is a set of winning numbers, either supplied by an operator or selected by the engine.
type DrawNumbers struct {
	MainNumbers  []int `json:"mainNumbers"`
	WorldNumbers []int `json:"worldNumbers"`
}

// NumberPick is a single ticket request. With QuickPick set the numbers are generated.
type NumberPick struct {
	MainNumbers  []int `json:"mainNumbers"`
	WorldNumbers []int `json:"worldNumbers"`
	QuickPick    bool  `json:"quickPick"`
}

// WinningClass is one row of the static prize table.
type WinningClass struct {
	Class       int    `json:"class"`
	Requirement string `json:"requirement"`
	Odds        string `json:"odds"`
	MinPrize    int64  `json:"minPrize"`
}

// Account is the balance-holding side of a user.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"isAdmin"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
}

// AdminStats aggregates sales figures for the operator dashboard.
type AdminStats struct {
	TotalUsers            int   `json:"totalUsers"`
	TotalTickets          int   `json:"totalTickets"`
	TotalRevenue          int64 `json:"totalRevenue"`
	CurrentDrawingTickets int   `json:"currentDrawingTickets"`
	CurrentDrawingRevenue int64 `json:"currentDrawingRevenue"`
	CurrentJackpot        int64 `json:"currentJackpot"`
	RealJackpot           int64 `json:"realJackpot"`
	SimulatedJackpot      int64 `json:"simulatedJackpot"`
	PendingDrawing        bool  `json:"pendingDrawing"`
}
