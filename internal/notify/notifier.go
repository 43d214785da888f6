// internal/notify/notifier.go

// Package notify delivers the post-submission confirmation to the buyer
// and the internal responsible. Delivery is best-effort: the packet is
// already recorded when notification runs, so failures are logged and
// swallowed.
package notify

import (
	"context"
	"fmt"

	stderrors "contract-wizard/internal/common/errors"
	"contract-wizard/internal/common/logger"
	"contract-wizard/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SESService and SNSService mirror the AWS clients for mocking.
type SESService interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Config struct {
	EmailEnabled bool
	FromEmail    string
	SMSEnabled   bool
}

type Notifier struct {
	config Config
	ses    SESService
	sns    SNSService
	logger logger.Logger
}

func New(config Config, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		config: config,
		ses:    sesClient,
		sns:    snsClient,
		logger: log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

// NotifySubmitted sends the confirmation email and SMS for a recorded
// packet.
func (n *Notifier) NotifySubmitted(ctx context.Context, state *models.ProcessState, confirmationID string) {
	subject := "Contract packet received"
	body := fmt.Sprintf(
		"The contract packet for %s was submitted successfully. Confirmation number: %s.",
		state.Buyer.Name, confirmationID,
	)

	if n.config.EmailEnabled && n.ses != nil && state.Buyer.Email != "" {
		if err := n.sendEmail(ctx, state.Buyer.Email, subject, body); err != nil {
			serr := stderrors.NewNotificationSendFailedError("email", err)
			n.logger.Warn("confirmation email failed", map[string]interface{}{
				"confirmationId": confirmationID,
				"error":          serr.Error(),
			})
		}
	}

	if n.config.SMSEnabled && n.sns != nil && state.Buyer.Phone != "" {
		message := fmt.Sprintf("Contract packet received. Confirmation: %s", confirmationID)
		if err := n.sendSMS(ctx, state.Buyer.Phone, message); err != nil {
			serr := stderrors.NewNotificationSendFailedError("sms", err)
			n.logger.Warn("confirmation SMS failed", map[string]interface{}{
				"confirmationId": confirmationID,
				"error":          serr.Error(),
			})
		}
	}
}

func (n *Notifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.FromEmail),
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, to, message string) error {
	_, err := n.sns.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}
