// Package automation describes the page automation capability the
// campaign scheduler drives: a stateful session that searches a network
// and extracts candidate posts one at a time.
package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RawItem is one entry of a search listing, captured before it is opened.
type RawItem struct {
	Index   int
	Preview string
	Ref     string
}

// Extraction is what opening a listing entry yields.
type Extraction struct {
	ChannelName string
	ChannelID   string
	MemberText  string
	Text        string
	IsVideo     bool
	ViewText    string
	DateText    string
	URL         string
	NativeID    string
}

// Session is a single-owner automation session. Implementations are not
// safe for concurrent use.
type Session interface {
	EnsureSession(ctx context.Context, network string) error
	IsLoginRequired(ctx context.Context) (bool, error)
	Search(ctx context.Context, keyword string) error
	// ListCandidates returns at most max entries, newest first.
	ListCandidates(ctx context.Context, max int) ([]RawItem, error)
	Open(ctx context.Context, item RawItem) (Extraction, error)
	Close() error
}

// Launcher opens a fresh Session for one campaign run.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// ErrTransient marks a recoverable UI state such as a detached element
// or a lost navigation context.
var ErrTransient = errors.New("transient automation state")

var transientFragments = []string{
	"detached",
	"execution context",
	"cannot find context",
	"not visible",
	"target closed",
}

// Transient wraps err so that IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsTransient reports whether err is a transient automation error, either
// wrapped with ErrTransient or carrying one of the known messages.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, f := range transientFragments {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}
