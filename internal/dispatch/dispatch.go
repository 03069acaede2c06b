// Package dispatch routes outgoing text to the chat or mail channel named by
// a platform tag and reports the outcome as a Result instead of an error.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/edgard/herald/internal/store"
)

const defaultSendTimeout = 30 * time.Second

// Sender delivers body to a single recipient over one channel.
// The returned string is a short human-readable confirmation.
type Sender interface {
	Send(ctx context.Context, recipient store.Recipient, body string) (string, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, recipient store.Recipient, body string) (string, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, recipient store.Recipient, body string) (string, error) {
	return f(ctx, recipient, body)
}

// Result is the outcome of one delivery attempt.
type Result struct {
	Success bool
	Message string
}

// Attempt describes a delivery attempt for journaling.
type Attempt struct {
	ItemID    int64
	Kind      string
	Platform  store.Platform
	Recipient store.Recipient
	Body      string
	Result    Result
	At        time.Time
}

// Recorder persists delivery attempts. Recording failures never affect the Result.
type Recorder interface {
	RecordAttempt(ctx context.Context, a Attempt) error
}

// Dispatcher holds one Sender per platform.
type Dispatcher struct {
	logger      *slog.Logger
	sendTimeout time.Duration
	recorder    Recorder
	now         func() time.Time

	mu      sync.RWMutex
	senders map[store.Platform]Sender
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSendTimeout bounds every individual send.
func WithSendTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.sendTimeout = d
		}
	}
}

// WithRecorder journals every attempt.
func WithRecorder(r Recorder) Option {
	return func(disp *Dispatcher) { disp.recorder = r }
}

// WithClock overrides time.Now for attempt timestamps.
func WithClock(now func() time.Time) Option {
	return func(disp *Dispatcher) { disp.now = now }
}

// New creates a Dispatcher without any senders registered.
func New(logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &Dispatcher{
		logger:      logger.With("component", "dispatcher"),
		sendTimeout: defaultSendTimeout,
		now:         time.Now,
		senders:     make(map[store.Platform]Sender),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register installs s as the sender for platform, replacing any previous one.
func (d *Dispatcher) Register(platform store.Platform, s Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.senders[platform] = s
	d.logger.Debug("Registered sender", "platform", platform)
}

// Platforms returns the platforms with a registered sender.
func (d *Dispatcher) Platforms() []store.Platform {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]store.Platform, 0, len(d.senders))
	for p := range d.senders {
		out = append(out, p)
	}
	return out
}

// Dispatch sends body to recipient on platform.
func (d *Dispatcher) Dispatch(ctx context.Context, platform store.Platform, recipient store.Recipient, body string) Result {
	return d.deliver(ctx, Attempt{Kind: "direct", Platform: platform, Recipient: recipient, Body: body})
}

// DispatchItem sends a scheduled item to its stored recipient.
func (d *Dispatcher) DispatchItem(ctx context.Context, item store.ScheduledItem) Result {
	return d.deliver(ctx, Attempt{
		ItemID:    item.ID,
		Kind:      string(item.Kind),
		Platform:  item.Platform,
		Recipient: item.Recipient,
		Body:      item.Body,
	})
}

// Reply answers an inbound message on the channel it arrived on.
func (d *Dispatcher) Reply(ctx context.Context, platform store.Platform, recipient store.Recipient, body string) Result {
	return d.deliver(ctx, Attempt{Kind: "auto_reply", Platform: platform, Recipient: recipient, Body: body})
}

func (d *Dispatcher) deliver(ctx context.Context, a Attempt) Result {
	log := d.logger.With("platform", a.Platform, "recipient", a.Recipient.Name, "item_id", a.ItemID)

	a.Result = d.send(ctx, a.Platform, a.Recipient, a.Body)
	a.At = d.now()

	if a.Result.Success {
		log.InfoContext(ctx, "Delivery succeeded", "detail", a.Result.Message)
	} else {
		log.WarnContext(ctx, "Delivery failed", "detail", a.Result.Message)
	}

	if d.recorder != nil {
		if err := d.recorder.RecordAttempt(ctx, a); err != nil {
			log.ErrorContext(ctx, "Failed to record delivery attempt", "error", err)
		}
	}
	return a.Result
}

func (d *Dispatcher) send(ctx context.Context, platform store.Platform, recipient store.Recipient, body string) Result {
	if platform == "" || platform == store.PlatformNone {
		return Result{Message: "No delivery platform set."}
	}

	d.mu.RLock()
	sender, ok := d.senders[platform]
	d.mu.RUnlock()
	if !ok {
		return Result{Message: fmt.Sprintf("Platform %q is not available.", platform)}
	}

	if missing := missingField(platform, recipient); missing != "" {
		who := recipient.Name
		if who == "" {
			who = "recipient"
		}
		return Result{Message: fmt.Sprintf("No %s configured for %s.", missing, who)}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	detail, err := sender.Send(sendCtx, recipient, body)
	if err != nil {
		return Result{Message: fmt.Sprintf("%s error: %v", platformTitle(platform), err)}
	}
	return Result{Success: true, Message: detail}
}

// missingField names the recipient address a platform needs, if absent.
func missingField(platform store.Platform, r store.Recipient) string {
	switch platform {
	case store.PlatformTelegram:
		if r.TelegramID == "" {
			return "telegram id"
		}
	case store.PlatformWhatsApp:
		if r.Phone == "" {
			return "phone number"
		}
	case store.PlatformEmail:
		if r.Email == "" {
			return "email address"
		}
	}
	return ""
}

func platformTitle(p store.Platform) string {
	switch p {
	case store.PlatformTelegram:
		return "Telegram"
	case store.PlatformWhatsApp:
		return "WhatsApp"
	case store.PlatformEmail:
		return "Email"
	default:
		return string(p)
	}
}
