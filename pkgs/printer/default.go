package printer

import (
	"context"
	"os"
)

// ConsolePrinter writes to stderr so stdout stays reserved for rendered
// output of jobs without a destination.
var ConsolePrinter = New(os.Stderr)

func Ctx(ctx context.Context) *Printer {
	return ConsolePrinter.Ctx(ctx)
}
