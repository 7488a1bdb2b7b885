// internal/transport/email.go
package transport

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESService is the slice of the SES client we use, defined for mocking.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailSender delivers email through AWS SES.
type EmailSender struct {
	client    SESService
	fromEmail string
}

func NewEmailSender(ctx context.Context, region, fromEmail string) (*EmailSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &EmailSender{
		client:    ses.NewFromConfig(awsCfg),
		fromEmail: fromEmail,
	}, nil
}

// NewEmailSenderWithClient wires a prebuilt SES client, used in tests.
func NewEmailSenderWithClient(client SESService, fromEmail string) *EmailSender {
	return &EmailSender{client: client, fromEmail: fromEmail}
}

func (s *EmailSender) Send(ctx context.Context, msg *Message) error {
	body := &types.Body{
		Text: &types.Content{Data: aws.String(msg.TextBody)},
	}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTMLBody)}
	}

	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body:    body,
		},
		Source: aws.String(s.fromEmail),
	})
	return err
}
