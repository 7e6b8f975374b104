package remote

import "context"

type Signal string

const (
	SigTerm Signal = "TERM"
	SigKill Signal = "KILL"
)

// Transport starts commands on hosts.
type Transport interface {
	Start(ctx context.Context, host, user, cmd string) (Session, error)
	Upload(ctx context.Context, host, user, localPath, remotePath string) error
	Close() error
}

// Session is one running command.
type Session interface {
	// Wait blocks until the command exits. err is non nil only when the exit
	// status could not be obtained.
	Wait() (rc int, stdout string, stderr string, err error)
	Signal(sig Signal) error
	// Close releases the session, a running command is abandoned.
	Close() error
}

var signalNumbers = map[string]int{
	"HUP":  1,
	"INT":  2,
	"QUIT": 3,
	"KILL": 9,
	"USR1": 10,
	"SEGV": 11,
	"USR2": 12,
	"PIPE": 13,
	"ALRM": 14,
	"TERM": 15,
}

// rcForSignal maps a terminating signal to the rc a POSIX shell reports.
func rcForSignal(sig string) int {
	if n, ok := signalNumbers[sig]; ok {
		return 128 + n
	}
	return 255
}
