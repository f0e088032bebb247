package models

import "fmt"

// Grade is the learner-reported recall quality for one review.
// The numeric values are part of the persisted format and of the API
// contract; scheduling comparisons key off Grade >= Good.
type Grade int

const (
	Again Grade = iota + 1 // Complete failure to recall.
	Hard                   // Recalled with significant difficulty.
	Good                   // Recalled with some effort.
	Easy                   // Recalled effortlessly.
)

var gradeNames = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}

// Compile-time interface check.
var _ fmt.Stringer = Grade(0)

// String returns the name of the grade ("Again", "Hard", "Good", "Easy").
// For invalid values it returns "Grade(n)".
func (g Grade) String() string {
	if g.IsValid() {
		return gradeNames[g]
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

// IsValid reports whether g is one of the four defined grades.
func (g Grade) IsValid() bool {
	return g >= Again && g <= Easy
}

// IsCorrect reports whether g counts as a successful recall.
func (g Grade) IsCorrect() bool {
	return g >= Good
}
