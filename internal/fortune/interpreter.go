package fortune

import (
	"context"
	"hash/fnv"
)

// Reading is the interpreted fortune returned to the caller.
type Reading struct {
	Text   string
	Source string
}

// Interpreter produces a reading for a paid draw. The production pipeline
// (poem retrieval + model interpretation) lives outside this service and
// consumes the Job asynchronously; the interface exists so the draw endpoint
// can return a provisional reading synchronously.
type Interpreter interface {
	Interpret(ctx context.Context, category, question string) (Reading, error)
}

// StaticInterpreter is a deterministic stub used until the real pipeline picks
// up the job.
type StaticInterpreter struct{}

var stockReadings = []string{
	"A door you thought closed is only ajar.",
	"The coin you hesitate to spend buys the better road.",
	"What you seek is already walking toward you, slowly.",
	"Patience this season, boldness the next.",
	"An old promise returns asking to be kept.",
}

// Interpret returns a canned reading chosen by hashing the question so the
// same question yields the same provisional text.
func (StaticInterpreter) Interpret(_ context.Context, category, question string) (Reading, error) {
	h := fnv.New32a()
	h.Write([]byte(category))
	h.Write([]byte(question))
	return Reading{
		Text:   stockReadings[h.Sum32()%uint32(len(stockReadings))],
		Source: "provisional",
	}, nil
}
