// Command check-providers verifies the external providers of a deployment:
// report blob storage, the push, email and SMS gateways, Kafka and Redis.
// Every check whose settings are missing is skipped.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/azure"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/channel"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/debounce"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/events"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/internal/pdf"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

type check struct {
	name     string
	required []string
	run      func(ctx context.Context, logger *zap.Logger) error
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	checks := []check{
		{"blob storage", []string{"AZURE_STORAGE_ACCOUNT_NAME", "AZURE_STORAGE_ACCOUNT_KEY"}, checkBlobStorage},
		{"push gateway", []string{"PUSH_GATEWAY_URL", "CHECK_PUSH_USER"}, checkPush},
		{"email provider", []string{"EMAIL_API_URL", "EMAIL_FROM", "CHECK_EMAIL_TO"}, checkEmail},
		{"sms gateway", []string{"SMS_API_URL", "SMS_SENDER", "CHECK_SMS_TO"}, checkSMS},
		{"kafka", []string{"KAFKA_BROKERS"}, checkKafka},
		{"redis", []string{"REDIS_ADDR"}, checkRedis},
	}

	failed := 0
	for _, c := range checks {
		if missing := missingEnv(c.required); len(missing) > 0 {
			logger.Info("skipping check", zap.String("check", c.name), zap.Strings("missing", missing))
			continue
		}

		logger.Info("=== running check ===", zap.String("check", c.name))
		if err := c.run(ctx, logger); err != nil {
			logger.Error("check failed", zap.String("check", c.name), zap.Error(err))
			failed++
			continue
		}
		logger.Info("check passed", zap.String("check", c.name))
	}

	if failed > 0 {
		logger.Error("provider checks failed", zap.Int("failed", failed))
		os.Exit(1)
	}
	logger.Info("all configured provider checks passed")
}

func missingEnv(keys []string) []string {
	var missing []string
	for _, k := range keys {
		if os.Getenv(k) == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

func providerOptions(urlKey, apiKeyKey string) channel.ProviderOptions {
	return channel.ProviderOptions{
		BaseURL:    os.Getenv(urlKey),
		APIKey:     os.Getenv(apiKeyKey),
		RetryCount: 1,
	}
}

// checkBlobStorage renders a sample report and round-trips it through the container
func checkBlobStorage(ctx context.Context, logger *zap.Logger) error {
	container := os.Getenv("AZURE_STORAGE_REPORT_CONTAINER")
	if container == "" {
		container = "adherence-reports"
	}

	client, err := azure.NewBlobStorageClient(
		os.Getenv("AZURE_STORAGE_ACCOUNT_NAME"),
		os.Getenv("AZURE_STORAGE_ACCOUNT_KEY"),
		container,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create blob storage client: %w", err)
	}

	now := time.Now().UTC()
	document, err := pdf.NewPDFGenerator(logger).Generate(&pdf.ReportData{
		UserName:    "Provider Check",
		PeriodStart: now.AddDate(0, 0, -7),
		PeriodEnd:   now,
		Window:      model.AdherenceWindow{Scheduled: 1, Taken: 1, Percentage: 100},
	})
	if err != nil {
		return fmt.Errorf("failed to render sample report: %w", err)
	}

	name := fmt.Sprintf("provider-check-%d.pdf", now.Unix())
	blobName, err := client.UploadPDF(ctx, name, document)
	if err != nil {
		return fmt.Errorf("PDF upload failed: %w", err)
	}
	logger.Info("PDF uploaded", zap.String("blob_name", blobName))

	downloaded, err := client.DownloadPDF(ctx, blobName)
	if err != nil {
		return fmt.Errorf("PDF download failed: %w", err)
	}
	if !bytes.Equal(downloaded, document) {
		return fmt.Errorf("downloaded PDF differs from the uploaded one")
	}

	logger.Info("PDF downloaded and verified", zap.Int("size_bytes", len(downloaded)))
	return nil
}

func checkPush(ctx context.Context, logger *zap.Logger) error {
	client := channel.NewPushClient(providerOptions("PUSH_GATEWAY_URL", "PUSH_GATEWAY_API_KEY"), logger)
	return client.Send(ctx, os.Getenv("CHECK_PUSH_USER"), "Provider check",
		"This is a test notification from the adherence engine", model.PriorityLow,
		map[string]string{"check": "true"})
}

func checkEmail(ctx context.Context, logger *zap.Logger) error {
	client := channel.NewEmailClient(providerOptions("EMAIL_API_URL", "EMAIL_API_KEY"), os.Getenv("EMAIL_FROM"), logger)
	return client.Send(ctx, os.Getenv("CHECK_EMAIL_TO"), "Adherence engine provider check",
		"<p>This is a test email from the adherence engine.</p>")
}

func checkSMS(ctx context.Context, logger *zap.Logger) error {
	client := channel.NewSMSClient(providerOptions("SMS_API_URL", "SMS_API_KEY"), os.Getenv("SMS_SENDER"), logger)
	return client.Send(ctx, os.Getenv("CHECK_SMS_TO"), "Adherence engine provider check")
}

func checkKafka(ctx context.Context, logger *zap.Logger) error {
	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "medication-events"
	}

	publisher := events.NewKafkaPublisher(strings.Split(os.Getenv("KAFKA_BROKERS"), ","), topic, logger)
	defer publisher.Close()

	return publisher.Publish(ctx, model.DomainEvent{
		Type:       "provider.check",
		UserID:     uuid.NewString(),
		OccurredAt: time.Now().UTC(),
	})
}

func checkRedis(ctx context.Context, logger *zap.Logger) error {
	client := debounce.NewRedisClient(os.Getenv("REDIS_ADDR"), os.Getenv("REDIS_PASSWORD"), 0)
	defer client.Close()

	return debounce.NewRedisDebouncer(client, time.Second, logger).Ping(ctx)
}
