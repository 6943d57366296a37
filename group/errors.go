package group

import (
	"fmt"
	"strings"
)

// AggregateError collects every error reported by a Group running in
// CollectAll mode. A task's panic is wrapped as a *flock.TaskError before
// being appended here, so errors.As still reaches it through Errors.
type AggregateError struct {
	Errors []error
}

func (a AggregateError) Error() string {
	switch len(a.Errors) {
	case 0:
		return "no errors"
	case 1:
		return a.Errors[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d errors occurred:", len(a.Errors))
	for _, err := range a.Errors {
		b.WriteString("\n\t* ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (a AggregateError) Unwrap() []error {
	return a.Errors
}
