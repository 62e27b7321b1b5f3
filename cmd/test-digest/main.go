package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brandguard/brandguard-bot/internal/activebrand"
	"github.com/brandguard/brandguard-bot/internal/config"
	"github.com/brandguard/brandguard-bot/internal/models"
	"github.com/brandguard/brandguard-bot/internal/monitoring"
	"github.com/brandguard/brandguard-bot/internal/sampledata"
	"github.com/brandguard/brandguard-bot/internal/store"
)

// TestStorage implements simple file-based storage for testing
type TestStorage struct{}

func (t *TestStorage) Store(filename string, data []byte) error {
	dir := "test_output"
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, filename), data, 0644)
}

func (t *TestStorage) Retrieve(filename string) ([]byte, error) {
	return os.ReadFile(filepath.Join("test_output", filename))
}

func (t *TestStorage) List(prefix string) ([]string, error) {
	return []string{}, nil
}

func (t *TestStorage) Delete(filename string) error {
	return os.Remove(filepath.Join("test_output", filename))
}

// TestNotificationService outputs digests to terminal and files
type TestNotificationService struct{}

func (t *TestNotificationService) SendDigest(digest *models.Digest) error {
	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Println("BRANDGUARD DIGEST")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Brand:     %s\n", digest.BrandID)
	fmt.Printf("Period:    %s\n", digest.Period)
	fmt.Printf("Generated: %s\n", digest.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Printf("Alerts:    %d\n", digest.TotalAlerts)

	if len(digest.SeverityBreakdown) > 0 {
		fmt.Println("\nSeverity:")
		for _, severity := range []models.Severity{models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow} {
			if count := digest.SeverityBreakdown[string(severity)]; count > 0 {
				fmt.Printf("   %-10s %d alerts\n", string(severity)+":", count)
			}
		}
	}

	if len(digest.PlatformBreakdown) > 0 {
		fmt.Println("\nPlatforms:")
		for platform, count := range digest.PlatformBreakdown {
			fmt.Printf("   %-15s %d alerts\n", platform+":", count)
		}
	}

	fmt.Println("\nWorst alerts first:")
	alerts := make([]models.Alert, len(digest.Alerts))
	copy(alerts, digest.Alerts)
	models.SortAlerts(alerts)
	for i, alert := range alerts {
		if i >= 5 {
			fmt.Printf("   ... and %d more alerts\n", len(alerts)-5)
			break
		}
		fmt.Printf("\n   %d. [%s] %s\n", i+1, strings.ToUpper(string(alert.Severity)), alert.Claim)
		fmt.Printf("      Platform: %s | Accuracy: %.0f\n", alert.Platform, alert.AccuracyScore)
		fmt.Printf("      Detected: %s\n", alert.DetectedAt.Format("2006-01-02 15:04"))
		if alert.SourceURL != "" {
			fmt.Printf("      Source: %s\n", alert.SourceURL)
		}
	}

	if err := t.saveDigestToFile(digest); err != nil {
		fmt.Printf("\nWarning: could not save to file: %v\n", err)
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	return nil
}

func (t *TestNotificationService) SendAlert(alert *models.Alert) error {
	fmt.Println("\nURGENT ALERT")
	fmt.Printf("Severity: %s\n", alert.Severity)
	fmt.Printf("Claim: %s\n", alert.Claim)
	return nil
}

func (t *TestNotificationService) saveDigestToFile(digest *models.Digest) error {
	dir := "test_output"
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	timestamp := digest.GeneratedAt.Format("2006-01-02_15-04-05")
	filename := filepath.Join(dir, fmt.Sprintf("brandguard_digest_%s.json", timestamp))

	data, err := json.MarshalIndent(digest, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return err
	}

	fmt.Printf("\nDigest saved to: %s\n", filename)
	return nil
}

func main() {
	fmt.Println("BrandGuard Bot - Test Digest Generator")
	fmt.Println("======================================")

	cfg := &config.Config{
		SweepSchedule:  "hourly",
		DefaultBrandID: "brand-default",
	}

	testStorage := &TestStorage{}
	testNotifications := &TestNotificationService{}
	entityStore := store.New()
	brands := activebrand.New(testStorage, cfg.DefaultBrandID)

	service := monitoring.NewService(cfg, nil, entityStore, brands, testStorage, testNotifications)

	var sampleAlerts []models.Alert
	for _, e := range sampledata.Entities(models.KindAlert, brands.Get()) {
		if alert, ok := e.(models.Alert); ok {
			sampleAlerts = append(sampleAlerts, alert)
		}
	}

	fmt.Printf("\nGenerating digest with %d sample alerts...\n", len(sampleAlerts))

	digest := service.GenerateTestDigest(brands.Get(), sampleAlerts)

	if err := testNotifications.SendDigest(digest); err != nil {
		fmt.Printf("Error sending digest: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nTest digest generation completed.")
	fmt.Println("\nNext steps:")
	fmt.Println("   - Check the 'test_output' directory for the saved JSON digest")
	fmt.Println("   - Run 'go test ./internal/monitoring -v' for more detailed tests")
	fmt.Println("   - Point API_BASE_URL at a backend and run 'go run cmd/bot/main.go'")
}
