package driven

import "context"

// Mailer is the driven port for outbound notification email. Implementations
// are thin transports; a send failure is a per-unit error and never aborts
// the caller's batch.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
