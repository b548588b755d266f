package jobs

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"listingpulse/internal/config"
	"listingpulse/internal/pkg/geoip"
)

// MaxMindDownloadURL is the GeoLite2 country edition download template.
const MaxMindDownloadURL = "https://download.maxmind.com/app/geoip_download?edition_id=GeoLite2-Country&license_key=%s&suffix=tar.gz"

// GeoLiteUpdaterJob downloads the GeoLite2 country database and reloads the
// in-process reader used for country enrichment at ingestion.
type GeoLiteUpdaterJob struct {
	logger      *slog.Logger
	cfg         *config.Config
	client      *http.Client
	downloadURL string
}

func NewGeoLiteUpdaterJob(logger *slog.Logger, cfg *config.Config) *GeoLiteUpdaterJob {
	return &GeoLiteUpdaterJob{
		logger:      logger,
		cfg:         cfg,
		client:      &http.Client{Timeout: 5 * time.Minute},
		downloadURL: MaxMindDownloadURL,
	}
}

// Configured reports whether a license key is set.
func (j *GeoLiteUpdaterJob) Configured() bool {
	return strings.TrimSpace(j.cfg.GeoLiteLicenseKey) != ""
}

// Run downloads the database when a license key is configured.
func (j *GeoLiteUpdaterJob) Run(ctx context.Context) error {
	if !j.Configured() {
		j.logger.Debug("GeoLite license key not configured, skipping update")
		return nil
	}

	j.logger.Info("Starting GeoLite database update", slog.String("path", j.cfg.GeoDBPath))
	if err := j.downloadAndUpdate(ctx, j.cfg.GeoLiteLicenseKey); err != nil {
		return fmt.Errorf("update GeoLite database: %w", err)
	}

	geoip.ReloadGeoDB()
	j.logger.Info("GeoLite database updated successfully")
	return nil
}

func (j *GeoLiteUpdaterJob) downloadAndUpdate(ctx context.Context, licenseKey string) error {
	destPath := j.cfg.GeoDBPath
	if destPath == "" {
		destPath = filepath.Join("storage", "GeoLite2-Country.mmdb")
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(j.downloadURL, licenseKey), nil)
	if err != nil {
		return err
	}
	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download GeoLite database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	return extractMMDB(resp.Body, destPath)
}

// extractMMDB writes the first .mmdb entry of a tar.gz stream to destPath.
// The file is replaced atomically so readers never see a partial database.
func extractMMDB(archive io.Reader, destPath string) error {
	gzr, err := gzip.NewReader(archive)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("no .mmdb file found in archive")
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}
		if !strings.HasSuffix(header.Name, ".mmdb") {
			continue
		}

		tmp, err := os.CreateTemp(filepath.Dir(destPath), ".geolite-*.mmdb")
		if err != nil {
			return fmt.Errorf("failed to create temp file: %w", err)
		}
		defer os.Remove(tmp.Name())

		if _, err := io.Copy(tmp, tr); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to extract file: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		return os.Rename(tmp.Name(), destPath)
	}
}
