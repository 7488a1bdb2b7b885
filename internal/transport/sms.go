// internal/transport/sms.go
package transport

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSService is the slice of the SNS client we use, defined for mocking.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSSender delivers SMS through AWS SNS. The reminder pipeline itself only
// dispatches email; this path serves sms-channel requests from the portal.
type SMSSender struct {
	client SNSService
}

func NewSMSSender(ctx context.Context, region string) (*SMSSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SMSSender{client: sns.NewFromConfig(awsCfg)}, nil
}

// NewSMSSenderWithClient wires a prebuilt SNS client, used in tests.
func NewSMSSenderWithClient(client SNSService) *SMSSender {
	return &SMSSender{client: client}
}

func (s *SMSSender) Send(ctx context.Context, msg *Message) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(msg.To),
		Message:     aws.String(msg.TextBody),
	})
	return err
}
