package outreach

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coldreach/models"
)

// ErrNoCapacity is returned by RecordSend when a concurrent send consumed
// the account's last daily slot between selection and the usage update.
var ErrNoCapacity = errors.New("account has no sending capacity left today")

// AccountPool owns sender identities and their daily quotas. Selection is
// least-recently-used rotation so volume spreads evenly across accounts
// instead of exhausting one before touching the next.
type AccountPool struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewAccountPool(db *gorm.DB, logger *log.Logger) *AccountPool {
	return &AccountPool{
		DB:     db,
		Logger: logger,
	}
}

// SelectAccount returns the usable account with the oldest last_used_at
// among Active accounts that still have quota today. A nil account with a
// nil error means the pool is exhausted; callers stop sending, it is not
// a fault.
func (ap *AccountPool) SelectAccount(userID uint) (*models.SenderAccount, error) {
	if err := ap.resetStaleCounters(userID); err != nil {
		return nil, err
	}

	var account models.SenderAccount
	err := ap.DB.
		Where("user_id = ? AND status = ? AND sent_today < daily_limit", userID, models.AccountStatusActive).
		Order("last_used_at ASC NULLS FIRST").
		First(&account).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// RecordSend consumes one daily slot. The update is conditional on
// sent_today still being under the limit, so two sweeps that both selected
// the same account cannot push it past daily_limit; the loser gets
// ErrNoCapacity and must stop.
func (ap *AccountPool) RecordSend(accountID uint) error {
	result := ap.DB.Model(&models.SenderAccount{}).
		Where("id = ? AND sent_today < daily_limit", accountID).
		Updates(map[string]interface{}{
			"sent_today":   gorm.Expr("sent_today + ?", 1),
			"total_sent":   gorm.Expr("total_sent + ?", 1),
			"last_used_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNoCapacity
	}
	return nil
}

// RecordFailure notes a transport failure against the account. The account
// is not auto-disabled; persistent failures are left as a policy decision
// for the operator (the status stays Active, the error is surfaced).
func (ap *AccountPool) RecordFailure(accountID uint, reason string) error {
	ap.Logger.Printf("account %d transport failure: %s", accountID, reason)
	return ap.DB.Model(&models.SenderAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"failure_count": gorm.Expr("failure_count + ?", 1),
			"last_error":    reason,
		}).Error
}

// DisableAccount marks an account Error so selection skips it. Exposed as
// the policy hook RecordFailure deliberately does not invoke.
func (ap *AccountPool) DisableAccount(accountID uint, reason string) error {
	return ap.DB.Model(&models.SenderAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"status":     models.AccountStatusError,
			"last_error": reason,
		}).Error
}

// RegisterOrUpdate upserts an account keyed by (user_id, email). Used to
// sync externally configured credentials into the pool at startup; calling
// it again with the same account is a no-op apart from refreshed
// connection settings. Counters and status are never touched on conflict.
func (ap *AccountPool) RegisterOrUpdate(account *models.SenderAccount) error {
	if account.Email == "" {
		return fmt.Errorf("account email is required")
	}
	return ap.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"from_name",
			"smtp_host", "smtp_port", "smtp_username", "smtp_password",
			"imap_host", "imap_port", "imap_username", "imap_password", "imap_mailbox",
			"daily_limit",
		}),
	}).Create(account).Error
}

// resetStaleCounters zeroes sent_today for accounts whose last send was on
// an earlier calendar day. There is no nightly cron; the reset rides along
// with selection so a pool that sat idle overnight starts fresh.
func (ap *AccountPool) resetStaleCounters(userID uint) error {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	result := ap.DB.Model(&models.SenderAccount{}).
		Where("user_id = ? AND sent_today > 0 AND (last_used_at IS NULL OR last_used_at < ?)", userID, today).
		Update("sent_today", 0)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		ap.Logger.Printf("reset daily counters for %d account(s)", result.RowsAffected)
	}
	return nil
}
