package relay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

// in-band error strings reported to the notify caller
const (
	ErrTextSkippedProblematic = "Notification skipped for problematic ID"
	ErrTextNoTelegramID       = "Telegram ID not found"
	ErrTextDeliveryFailed     = "Telegram notification failed"
	ErrTextSuppressed         = "Notifications disabled for this conversation"
)

// Result is what a notification attempt reports back, in-band. The stored
// chat message is never affected by any of this.
type Result struct {
	Success bool
	Outcome Outcome
	Error   string
}

/*
 * Notifier runs the full decision pipeline for one outbound chat
 * notification: suppression check, deny-list gate, identity resolution,
 * delivery, and the sticky suppression update on any failure. It never
 * returns an error to the caller; every outcome, transport faults included,
 * degrades into a Result so the send flow cannot crash.
 */
type Notifier struct {
	gate        *Gate
	resolver    *Resolver
	relay       *Relay
	suppression *SuppressionCache
}

func NewNotifier(gate *Gate, resolver *Resolver, relay *Relay, suppression *SuppressionCache) *Notifier {
	return &Notifier{gate: gate, resolver: resolver, relay: relay, suppression: suppression}
}

func (notifier *Notifier) Suppression() *SuppressionCache {
	return notifier.suppression
}

// Notify attempts one Telegram push for a message between the pair identified
// by key. toRef is the raw recipient reference (Telegram ID or internal ID).
func (notifier *Notifier) Notify(key string, toRef string, text string, nctx Context) Result {
	if notifier.suppression.Disabled(key) {
		return Result{Success: false, Outcome: Failed, Error: ErrTextSuppressed}
	}
	if !notifier.gate.ShouldAttempt(toRef) {
		debugPrint("notification skipped, deny-listed recipient %s", toRef)
		return Result{Success: false, Outcome: Failed, Error: ErrTextSkippedProblematic}
	}
	chatID, err := notifier.resolver.Resolve(ParseRef(toRef))
	if err != nil {
		if !errors.Is(err, ErrUnresolvable) {
			debugPrint("recipient lookup for %s failed: %s", toRef, err.Error())
		}
		notifier.suppression.Disable(key)
		return Result{Success: false, Outcome: Failed, Error: ErrTextNoTelegramID}
	}
	outcome, err := notifier.relay.Send(chatID, text, nctx)
	if outcome != Delivered {
		if err != nil {
			debugPrint("telegram transport fault for chat %d: %s", chatID, err.Error())
		}
		notifier.suppression.Disable(key)
		return Result{Success: false, Outcome: outcome, Error: ErrTextDeliveryFailed}
	}
	return Result{Success: true, Outcome: Delivered}
}

// this function prints a line of debug information to the default IO writer
// debugging status and DefaultWriter are inherited from gin
func debugPrint(format string, values ...interface{}) {
	if gin.IsDebugging() {
		if !strings.HasSuffix(format, "\n") {
			format += "\n"
		}
		fmt.Fprintf(gin.DefaultWriter, "[Relay] "+format, values...)
	}
}
