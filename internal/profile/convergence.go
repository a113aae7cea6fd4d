package profile

// Dependency names one input the BMI waits for.
type Dependency int

const (
	DependencyWeight Dependency = iota
	DependencyHeight
)

func (d Dependency) String() string {
	switch d {
	case DependencyWeight:
		return "weight"
	case DependencyHeight:
		return "height"
	default:
		return "unknown"
	}
}

// ConvergenceState is how many of the two dependencies have arrived.
type ConvergenceState int

const (
	Empty ConvergenceState = iota
	OneReady
	BothReady
)

func (s ConvergenceState) String() string {
	switch s {
	case Empty:
		return "empty"
	case OneReady:
		return "one-ready"
	case BothReady:
		return "both-ready"
	default:
		return "invalid"
	}
}

// Convergence joins the weight and height fetches. Marks are set-only, so
// marking the same dependency twice or marking out of order is harmless.
// It is not safe for concurrent use; the aggregator only touches it from
// its serial queue.
type Convergence struct {
	weight bool
	height bool
}

// Mark records that dep has completed and returns the resulting state.
func (c *Convergence) Mark(dep Dependency) ConvergenceState {
	switch dep {
	case DependencyWeight:
		c.weight = true
	case DependencyHeight:
		c.height = true
	}
	return c.State()
}

// Marked reports whether dep has completed.
func (c *Convergence) Marked(dep Dependency) bool {
	switch dep {
	case DependencyWeight:
		return c.weight
	case DependencyHeight:
		return c.height
	default:
		return false
	}
}

// State derives the join state from the marks.
func (c *Convergence) State() ConvergenceState {
	switch {
	case c.weight && c.height:
		return BothReady
	case c.weight || c.height:
		return OneReady
	default:
		return Empty
	}
}

// Ready reports whether both dependencies have completed.
func (c *Convergence) Ready() bool {
	return c.State() == BothReady
}
