// Package notify defines the narrow delivery capability the scheduler and the
// dead man's switch controller consume. The production implementation lives
// in internal/briar.
package notify

import "context"

// Contact is a resolvable message recipient.
type Contact struct {
	ID   string
	Name string
}

// BroadcastResult reports per-contact delivery outcomes of a broadcast.
type BroadcastResult struct {
	Delivered []string
	Failed    []string
}

// Notifier delivers outbound text to contacts.
type Notifier interface {
	// SendToContact delivers text to a single contact.
	SendToContact(ctx context.Context, contactID, text string) error
	// Broadcast delivers text to every known contact, best effort.
	Broadcast(ctx context.Context, text string) (BroadcastResult, error)
	// ResolveContacts lists the known contacts so recipient names can be
	// mapped to contact identifiers.
	ResolveContacts(ctx context.Context) ([]Contact, error)
}
