// Package measure implements the two-click distance tool. Nothing here is
// persisted or broadcast.
package measure

// FeetPerCell is the tabletop scale of one grid cell.
const FeetPerCell = 5

// Phase is the state of a Tool.
type Phase int

const (
	Idle Phase = iota
	AwaitingSecondPoint
)

// Point is a grid cell.
type Point struct {
	X, Y int
}

// Result is a completed measurement.
type Result struct {
	From  Point   `json:"from"`
	To    Point   `json:"to"`
	Cells float64 `json:"cells"`
	Feet  float64 `json:"feet"`
}

// Distance costs diagonal steps at 1.5 cells.
func Distance(a, b Point) float64 {
	dx := abs(b.X - a.X)
	dy := abs(b.Y - a.Y)
	hi, lo := dx, dy
	if lo > hi {
		hi, lo = lo, hi
	}
	return float64(hi) + 0.5*float64(lo)
}

// Measure returns the full result between two cells.
func Measure(a, b Point) Result {
	d := Distance(a, b)
	return Result{From: a, To: b, Cells: d, Feet: d * FeetPerCell}
}

// Tool is the local Idle -> AwaitingSecondPoint -> Idle machine.
type Tool struct {
	phase Phase
	start Point
	last  *Result
}

// Phase returns the current state.
func (t *Tool) Phase() Phase { return t.phase }

// Start returns the recorded first point and whether one is pending.
func (t *Tool) Start() (Point, bool) {
	return t.start, t.phase == AwaitingSecondPoint
}

// Last returns the most recent completed measurement, if any.
func (t *Tool) Last() (Result, bool) {
	if t.last == nil {
		return Result{}, false
	}
	return *t.last, true
}

// Click advances the machine. The second click returns the measurement.
func (t *Tool) Click(p Point) (Result, bool) {
	if t.phase == Idle {
		t.start = p
		t.phase = AwaitingSecondPoint
		return Result{}, false
	}
	r := Measure(t.start, p)
	t.last = &r
	t.phase = Idle
	return r, true
}

// Reset abandons a pending measurement.
func (t *Tool) Reset() {
	t.phase = Idle
	t.start = Point{}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
