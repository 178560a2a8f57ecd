package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/clinic-intake/cmd/mainconfig"
	"github.com/wolfman30/clinic-intake/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-intake/internal/config"
	"github.com/wolfman30/clinic-intake/internal/reminders"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

type reminderSender interface {
	Send(ctx context.Context, reminderID string) (reminders.Delivery, error)
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).Component("reminder-lambda")

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	app, err := bootstrap.Build(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	lambda.Start(func(ctx context.Context, evt events.SQSEvent) (events.SQSEventResponse, error) {
		return handle(ctx, app.Sender, logger, evt), nil
	})
}

// handle sends one reminder per record. Failed sends are reported back as
// batch item failures so SQS redelivers only those; malformed bodies are dropped.
func handle(ctx context.Context, sender reminderSender, logger *logging.Logger, evt events.SQSEvent) events.SQSEventResponse {
	var resp events.SQSEventResponse
	for _, record := range evt.Records {
		reminderID, err := reminders.ParseJob(record.Body)
		if err != nil {
			logger.Warn("dropping malformed reminder job", "message_id", record.MessageId, "error", err)
			continue
		}
		delivery, err := sender.Send(ctx, reminderID)
		if err != nil {
			logger.Error("reminder job failed", "reminder_id", reminderID, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			continue
		}
		logger.Info("reminder job handled",
			"reminder_id", reminderID,
			"email_sent", delivery.EmailSent,
			"sms_sent", delivery.SMSSent,
			"skipped", delivery.Skipped,
		)
	}
	return resp
}
