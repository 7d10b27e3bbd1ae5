package sns

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-pregnancy-family/internal/config"
	"github.com/go-pregnancy-family/internal/infrastructure/awsconf"
)

// SMSSender sends SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type sender struct {
	client publisher
}

// NewSender returns an SNS-backed sender, or a logging sender when cfg.SMSDryRun is set.
func NewSender(cfg *config.Config) (SMSSender, error) {
	if cfg.SMSDryRun {
		return LogSender{}, nil
	}
	awsCfg, err := awsconf.Load(context.Background(), cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		o.BaseEndpoint = awsconf.Endpoint(cfg)
	})
	return &sender{client: client}, nil
}

// SendSMS publishes a transactional SMS. Mainland numbers are sent in E.164 form.
func (s *sender) SendSMS(ctx context.Context, to, message string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(e164(to)),
		Message:     aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

func e164(phone string) string {
	if len(phone) == 11 && phone[0] == '1' {
		return "+86" + phone
	}
	return phone
}

// LogSender writes messages to the log instead of sending them. Development only.
type LogSender struct{}

func (LogSender) SendSMS(_ context.Context, to, message string) error {
	slog.Info("sms dry run", "to", to, "message", message)
	return nil
}
