package outreach

import (
	"context"
	"log"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"coldreach/models"
)

// SendWorker is the due-time orchestrator. On each tick it runs one sweep:
// pull everything that is due, pair each task with a sender account from
// the pool, dispatch, and advance the contact. Sweeps never overlap; a
// tick that fires while the previous sweep is still dispatching is
// dropped, because due-ness is recomputed from the store each time and a
// second concurrent pass over the same due set would double-send.
type SendWorker struct {
	Pool      *AccountPool
	Sequencer *Sequencer
	Transport Transport
	Logger    *log.Logger

	Interval  time.Duration
	SendDelay time.Duration

	// Bootstrap is the externally configured sender identity, synced into
	// the pool before every sweep. Nil when no env account is configured.
	Bootstrap *models.SenderAccount

	sweeping atomic.Bool
}

// SweepResult is what one sweep accomplished.
type SweepResult struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

func NewSendWorker(pool *AccountPool, seq *Sequencer, transport Transport, logger *log.Logger) *SendWorker {
	return &SendWorker{
		Pool:      pool,
		Sequencer: seq,
		Transport: transport,
		Logger:    logger,
		Interval:  5 * time.Minute,
		SendDelay: 5 * time.Second,
	}
}

func (sw *SendWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	sw.Logger.Println("Send worker started")

	ticker := time.NewTicker(sw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.Logger.Println("Send worker shutting down...")
			return
		case <-ticker.C:
			if _, err := sw.RunSweep(ctx); err != nil {
				sw.Logger.Printf("sweep failed: %v", err)
			}
		}
	}
}

// RunSweep performs one full pass over the currently-due contacts. It
// returns how many sends succeeded and failed; failures local to one
// contact never abort the rest of the batch. The only whole-sweep stop is
// account exhaustion, which is backpressure, not an error.
func (sw *SendWorker) RunSweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	if !sw.sweeping.CompareAndSwap(false, true) {
		sw.Logger.Println("previous sweep still running, skipping this tick")
		return res, nil
	}
	defer sw.sweeping.Store(false)

	if sw.Bootstrap != nil {
		account := *sw.Bootstrap
		if err := sw.Pool.RegisterOrUpdate(&account); err != nil {
			sw.Logger.Printf("failed to sync configured account: %v", err)
		}
	}

	tasks, err := sw.Sequencer.DueContacts(time.Now().UTC())
	if err != nil {
		return res, err
	}
	if len(tasks) == 0 {
		return res, nil
	}
	sw.Logger.Printf("sweep: %d contact(s) due", len(tasks))

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			sw.Logger.Println("sweep cancelled, remaining contacts stay due")
			return res, nil
		}

		contact := task.Contact
		campaignID := *contact.CampaignID

		// A reply may have halted this contact after the due query ran.
		// Re-check the live record so the halt wins the race.
		ok, err := sw.Sequencer.Eligible(contact.ID, campaignID, task.Step.StepNumber)
		if err != nil {
			// Local to this contact; the rest of the due set still runs.
			sw.Logger.Printf("eligibility check failed for contact %d: %v", contact.ID, err)
			res.Skipped++
			continue
		}
		if !ok {
			sw.Logger.Printf("contact %d no longer eligible, skipping", contact.ID)
			res.Skipped++
			continue
		}

		account, err := sw.Pool.SelectAccount(contact.UserID)
		if err != nil {
			return res, err
		}
		if account == nil {
			// Deliberate backpressure: once accounts are saturated,
			// further attempts this sweep are wasted work.
			sw.Logger.Printf("no account with capacity left, stopping sweep (%d task(s) deferred)",
				len(tasks)-i)
			return res, nil
		}

		subject := RenderTemplate(task.Step.SubjectTemplate, &contact)
		body := RenderTemplate(task.Step.BodyTemplate, &contact)

		if err := sw.Transport.Send(ctx, account, contact.Email, subject, body); err != nil {
			sw.Logger.Printf("send to %s via %s failed: %v", contact.Email, account.Email, err)
			res.Failed++
			if isTransientSMTPError(err) {
				// Server-side throttle or hiccup: retry next cadence
				// without counting it against the account.
				continue
			}
			if recErr := sw.Pool.RecordFailure(account.ID, err.Error()); recErr != nil {
				sw.Logger.Printf("failed to record account failure: %v", recErr)
			}
			if isHardBounce(err) {
				if bErr := sw.Sequencer.MarkBounced(contact.ID); bErr != nil {
					sw.Logger.Printf("failed to mark contact %d bounced: %v", contact.ID, bErr)
				}
			}
			// Contact is not advanced and no capacity is consumed; it
			// stays due and retries on the next natural cadence.
			continue
		}

		if err := sw.Sequencer.AdvanceContact(contact.ID, campaignID, task.Step.StepNumber); err != nil {
			sw.Logger.Printf("failed to advance contact %d: %v", contact.ID, err)
		}
		if err := sw.Pool.RecordSend(account.ID); err != nil {
			if err == ErrNoCapacity {
				sw.Logger.Printf("account %s hit its daily limit mid-sweep, stopping", account.Email)
				res.Sent++
				return res, nil
			}
			sw.Logger.Printf("failed to record send for account %d: %v", account.ID, err)
		}
		res.Sent++

		// Fixed pacing between sends so outbound volume never bursts.
		if i < len(tasks)-1 && sw.SendDelay > 0 {
			select {
			case <-ctx.Done():
				sw.Logger.Println("sweep cancelled during pacing delay")
				return res, nil
			case <-time.After(sw.SendDelay):
			}
		}
	}

	sw.Logger.Printf("sweep done: %d sent, %d failed, %d skipped", res.Sent, res.Failed, res.Skipped)
	return res, nil
}

// isHardBounce reports whether a transport error is a permanent rejection
// of the recipient address, as opposed to a transient server condition.
func isHardBounce(err error) bool {
	msg := err.Error()
	for _, code := range []string{"550", "551", "553", "5.1.1", "user unknown", "no such user"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// isTransientSMTPError reports whether a transport error looks transient
// (4xx class or network timeout) rather than a permanent rejection.
func isTransientSMTPError(err error) bool {
	if err == nil {
		return false
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"try again", "temporary", "421", "450", "451", "452"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
