package outreach

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"coldreach/models"
)

// ErrCampaignExists is returned when a campaign with the same name already
// exists for the owner. Duplicate names are a caller error, never a merge.
var ErrCampaignExists = errors.New("campaign with this name already exists")

// StepInput describes one step of a campaign being created.
type StepInput struct {
	DelayDays int    `json:"delay" validate:"min=0"`
	Subject   string `json:"subject" validate:"required"`
	Body      string `json:"body" validate:"required"`
}

// DueTask pairs a due contact with the step template it should receive.
type DueTask struct {
	Contact models.Contact
	Step    models.CampaignStep
}

// Sequencer is the system of record for scheduling decisions: enrollment,
// the due-contact query, step advancement and the reply-driven halt. All
// state transitions are conditional updates so the two sweepers (send and
// reply) can race without a losing write clobbering a winning one.
type Sequencer struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewSequencer(db *gorm.DB, logger *log.Logger) *Sequencer {
	return &Sequencer{
		DB:     db,
		Logger: logger,
	}
}

// CreateCampaign stores a campaign and its steps, numbered 1..N in the
// order given. Fails with ErrCampaignExists on a duplicate name for the
// same owner.
func (s *Sequencer) CreateCampaign(userID uint, name string, steps []StepInput) (*models.Campaign, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("campaign needs at least one step")
	}

	var campaign models.Campaign
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Campaign{}).
			Where("user_id = ? AND name = ?", userID, name).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrCampaignExists
		}

		campaign = models.Campaign{
			UserID: userID,
			Name:   name,
			Status: models.CampaignStatusActive,
		}
		if err := tx.Create(&campaign).Error; err != nil {
			return err
		}

		for i, step := range steps {
			record := models.CampaignStep{
				CampaignID:      campaign.ID,
				StepNumber:      i + 1,
				DelayDays:       step.DelayDays,
				SubjectTemplate: step.Subject,
				BodyTemplate:    step.Body,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
			campaign.Steps = append(campaign.Steps, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// EnrollContacts assigns up to limit unenrolled contacts to the campaign,
// putting them at step 1, due immediately. Contacts already in a campaign
// are skipped; enrollment is at-most-once per contact. Returns the number
// actually enrolled.
func (s *Sequencer) EnrollContacts(campaignID uint, limit int) (int, error) {
	var campaign models.Campaign
	if err := s.DB.First(&campaign, campaignID).Error; err != nil {
		return 0, fmt.Errorf("campaign %d not found: %w", campaignID, err)
	}

	var ids []uint
	if err := s.DB.Model(&models.Contact{}).
		Where("user_id = ? AND campaign_id IS NULL AND status = ?", campaign.UserID, models.ContactStatusNew).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	// The campaign_id IS NULL guard repeats in the UPDATE so a contact
	// enrolled by a concurrent call is left alone.
	result := s.DB.Model(&models.Contact{}).
		Where("id IN ? AND campaign_id IS NULL", ids).
		Updates(map[string]interface{}{
			"campaign_id":    campaignID,
			"current_step":   1,
			"next_action_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, result.Error
	}

	s.Logger.Printf("enrolled %d contact(s) into campaign %d", result.RowsAffected, campaignID)
	return int(result.RowsAffected), nil
}

// DueContacts returns every contact whose next action time has passed and
// whose sequence is still live, joined with the step template for its
// current step. A contact whose step template is missing is skipped and
// logged; that is a data-integrity gap, not a reason to fail the sweep.
func (s *Sequencer) DueContacts(now time.Time) ([]DueTask, error) {
	var contacts []models.Contact
	err := s.DB.
		Where("next_action_at IS NOT NULL AND next_action_at <= ?", now).
		Where("status NOT IN ?", []string{
			models.ContactStatusReplied,
			models.ContactStatusBounced,
			models.ContactStatusCompleted,
		}).
		Where("campaign_id IS NOT NULL").
		Order("next_action_at ASC").
		Find(&contacts).Error
	if err != nil {
		return nil, err
	}

	tasks := make([]DueTask, 0, len(contacts))
	for _, contact := range contacts {
		var step models.CampaignStep
		err := s.DB.
			Where("campaign_id = ? AND step_number = ?", *contact.CampaignID, contact.CurrentStep).
			First(&step).Error
		if err == gorm.ErrRecordNotFound {
			s.Logger.Printf("contact %d is due but campaign %d has no step %d, skipping",
				contact.ID, *contact.CampaignID, contact.CurrentStep)
			continue
		}
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, DueTask{Contact: contact, Step: step})
	}
	return tasks, nil
}

// AdvanceContact moves a contact past the step it was just sent, scheduling
// the next step or completing the sequence. The update is conditional on
// the contact still sitting at (campaignID, stepNumber): a duplicate call
// for the same send, or a reply that halted the sequence in the meantime,
// matches zero rows and changes nothing.
func (s *Sequencer) AdvanceContact(contactID, campaignID uint, stepNumber int) error {
	now := time.Now().UTC()

	var next models.CampaignStep
	err := s.DB.
		Where("campaign_id = ? AND step_number = ?", campaignID, stepNumber+1).
		First(&next).Error

	guard := s.DB.Model(&models.Contact{}).
		Where("id = ? AND campaign_id = ? AND current_step = ?", contactID, campaignID, stepNumber).
		Where("status NOT IN ?", []string{
			models.ContactStatusReplied,
			models.ContactStatusBounced,
			models.ContactStatusCompleted,
		})

	var result *gorm.DB
	switch {
	case err == gorm.ErrRecordNotFound:
		// Last step sent: sequence complete. The campaign association is
		// kept for attribution, unlike the reply path.
		result = guard.Updates(map[string]interface{}{
			"status":            models.ContactStatusCompleted,
			"next_action_at":    nil,
			"last_contacted_at": now,
		})
	case err != nil:
		return err
	default:
		result = guard.Updates(map[string]interface{}{
			"current_step":      next.StepNumber,
			"status":            models.ContactStatusContacted,
			"next_action_at":    now.AddDate(0, 0, next.DelayDays),
			"last_contacted_at": now,
		})
	}

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		s.Logger.Printf("advance for contact %d was a no-op (already advanced or halted)", contactID)
	}
	return nil
}

// MarkReplied is the hard stop: the contact leaves its campaign and can
// never be selected by DueContacts again. The classification travels with
// the contact record.
func (s *Sequencer) MarkReplied(contactID uint, analysis ReplyAnalysis) error {
	result := s.DB.Model(&models.Contact{}).
		Where("id = ? AND status <> ?", contactID, models.ContactStatusReplied).
		Updates(map[string]interface{}{
			"status":          models.ContactStatusReplied,
			"reply_intent":    analysis.Intent,
			"reply_sentiment": analysis.Sentiment,
			"reply_summary":   analysis.Summary,
			"campaign_id":     nil,
			"next_action_at":  nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		s.Logger.Printf("halted sequence for contact %d (intent: %s)", contactID, analysis.Intent)
	}
	return nil
}

// MarkBounced is the terminal state for a hard transport failure.
func (s *Sequencer) MarkBounced(contactID uint) error {
	return s.DB.Model(&models.Contact{}).
		Where("id = ? AND status NOT IN ?", contactID, []string{
			models.ContactStatusReplied,
			models.ContactStatusBounced,
		}).
		Updates(map[string]interface{}{
			"status":         models.ContactStatusBounced,
			"next_action_at": nil,
		}).Error
}

// Eligible re-reads a contact and reports whether it is still allowed to
// receive the given campaign step. The send worker calls this immediately
// before dispatch so a reply recorded after the due query wins the race.
func (s *Sequencer) Eligible(contactID, campaignID uint, stepNumber int) (bool, error) {
	var contact models.Contact
	if err := s.DB.First(&contact, contactID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	if contact.Terminal() {
		return false, nil
	}
	if contact.CampaignID == nil || *contact.CampaignID != campaignID {
		return false, nil
	}
	return contact.CurrentStep == stepNumber, nil
}

// CampaignStats summarizes the contacts currently attached to a campaign.
// Replied contacts detach on halt, so they are counted from reply events.
func (s *Sequencer) CampaignStats(campaignID uint) (map[string]int64, error) {
	stats := map[string]int64{}

	rows, err := s.DB.Model(&models.Contact{}).
		Select("status, count(*) as n").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var total int64
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats[status] = n
		total += n
	}
	stats["enrolled"] = total
	return stats, nil
}
