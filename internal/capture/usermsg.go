package capture

import (
	"context"
	"errors"

	"github.com/gymtime/gymtime/internal/parser"
)

// UserMessage converts a Stop failure into a short, non-technical message
// suitable for transient display. Distinct phrasing per failure category lets
// the client suggest the right fix: rephrasing for format problems, checking
// the connection for transport problems.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, parser.ErrMissingExercise):
		return "Couldn't catch the exercise name. Try again and say the exercise first."
	case errors.Is(err, parser.ErrMissingMuscleGroup):
		return "Couldn't work out which muscle group that was. Try mentioning it."
	case errors.Is(err, parser.ErrInvalidData), errors.Is(err, parser.ErrInvalidFormat):
		return "Didn't quite get that. Try rephrasing your workout."
	case errors.Is(err, parser.ErrNoUserID):
		return "You're signed out. Sign in and try again."
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "That took too long. Check your connection and try again."
	default:
		return "Something went wrong saving your workout. Please try again."
	}
}
