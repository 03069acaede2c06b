package store

import (
	"errors"
	"log/slog"
	"strings"
)

// ErrContactNotFound is returned when no contact matches a lookup.
var ErrContactNotFound = errors.New("contact not found")

const contactsEnvelope = "contacts"

// Contacts is an address book persisted as {"contacts": [...]}.
// Contact names are unique lowercase keys.
type Contacts struct {
	*Collection[Contact]
}

// NewContacts creates an address book backed by path.
func NewContacts(path string, logger *slog.Logger) *Contacts {
	return &Contacts{Collection: NewCollection[Contact](path, contactsEnvelope, logger)}
}

// Names returns every contact name in insertion order.
func (c *Contacts) Names() []string {
	all := c.All()
	names := make([]string, 0, len(all))
	for _, ct := range all {
		names = append(names, ct.Name)
	}
	return names
}

// FindByName returns the contact whose name equals text, or failing that the
// first contact whose name appears inside text ("text mom i'm late").
func (c *Contacts) FindByName(text string) (Contact, bool) {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return Contact{}, false
	}
	all := c.All()
	for _, ct := range all {
		if ct.Name == needle {
			return ct, true
		}
	}
	for _, ct := range all {
		if ct.Name != "" && strings.Contains(needle, ct.Name) {
			return ct, true
		}
	}
	return Contact{}, false
}

// FindBySender resolves an inbound sender id on platform to a contact.
func (c *Contacts) FindBySender(platform Platform, senderID string) (Contact, bool) {
	if senderID == "" {
		return Contact{}, false
	}
	for _, ct := range c.All() {
		var id string
		switch platform {
		case PlatformTelegram:
			id = ct.TelegramID
		case PlatformWhatsApp:
			id = ct.Phone
		case PlatformEmail:
			id = strings.ToLower(ct.Email)
			senderID = strings.ToLower(senderID)
		}
		if id != "" && id == senderID {
			return ct, true
		}
	}
	return Contact{}, false
}

// Upsert adds a contact or replaces the addresses of an existing one.
// Empty address fields and a nil AutoReply leave the stored values untouched.
func (c *Contacts) Upsert(ct Contact) (Contact, error) {
	ct.Name = strings.ToLower(strings.TrimSpace(ct.Name))
	if ct.Name == "" {
		return Contact{}, errors.New("contact name is required")
	}

	var saved Contact
	err := c.Mutate(func(items []Contact) ([]Contact, bool) {
		for i := range items {
			if items[i].Name != ct.Name {
				continue
			}
			if ct.Email != "" {
				items[i].Email = ct.Email
			}
			if ct.Phone != "" {
				items[i].Phone = ct.Phone
			}
			if ct.TelegramID != "" {
				items[i].TelegramID = ct.TelegramID
			}
			if ct.AutoReply != nil {
				v := *ct.AutoReply
				items[i].AutoReply = &v
			}
			saved = items[i]
			return items, true
		}
		saved = ct
		return append(items, ct), true
	})
	return saved, err
}

// SetAutoReply sets or clears (nil) the per-contact auto-reply override.
func (c *Contacts) SetAutoReply(name string, enabled *bool) error {
	name = strings.ToLower(strings.TrimSpace(name))
	n, err := c.Update(
		func(ct Contact) bool { return ct.Name == name },
		func(ct *Contact) {
			if enabled == nil {
				ct.AutoReply = nil
				return
			}
			v := *enabled
			ct.AutoReply = &v
		},
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrContactNotFound
	}
	return nil
}

// Remove deletes the named contact.
func (c *Contacts) Remove(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	n, err := c.Delete(func(ct Contact) bool { return ct.Name == name })
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrContactNotFound
	}
	return nil
}
