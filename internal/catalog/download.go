package catalog

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zipmatch/internal/resilience"
)

// DefaultDownloadURL is the Census TIGER/Line 2024 national ZCTA shapefile.
const DefaultDownloadURL = "https://www2.census.gov/geo/tiger/TIGER2024/ZCTA520/tl_2024_us_zcta520.zip"

// FetchOptions configures Fetch.
type FetchOptions struct {
	URL     string
	DestDir string
	Client  *http.Client
	Retry   resilience.Policy
}

// Fetch downloads a zipped boundary shapefile and extracts it. It returns the
// path of the extracted .shp file. An existing non-empty archive is reused.
func Fetch(ctx context.Context, opts FetchOptions) (string, error) {
	if opts.URL == "" {
		opts.URL = DefaultDownloadURL
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 10 * time.Minute}
	}

	log := zap.L().With(
		zap.String("component", "catalog.fetch"),
		zap.String("url", opts.URL),
	)

	if err := os.MkdirAll(opts.DestDir, 0o755); err != nil {
		return "", eris.Wrap(err, "catalog: create dest dir")
	}

	parts := strings.Split(opts.URL, "/")
	zipName := parts[len(parts)-1]
	zipPath := filepath.Join(opts.DestDir, zipName)

	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("archive already exists, skipping download", zap.String("path", zipPath))
	} else {
		retry := opts.Retry
		retry.OnRetry = func(attempt int, wait time.Duration, err error) {
			log.Warn("download failed, retrying",
				zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		}
		log.Info("downloading boundary archive")
		err := resilience.Retry(ctx, retry, func(ctx context.Context) error {
			return downloadFile(ctx, opts.Client, opts.URL, zipPath)
		})
		if err != nil {
			return "", eris.Wrap(err, "catalog: download archive")
		}
	}

	extractDir := filepath.Join(opts.DestDir, strings.TrimSuffix(zipName, ".zip"))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "catalog: create extract dir")
	}
	if err := extractZIP(zipPath, extractDir); err != nil {
		return "", eris.Wrap(err, "catalog: extract archive")
	}

	shpPath, err := findFileByExt(extractDir, ".shp")
	if err != nil {
		return "", eris.Wrap(err, "catalog: find .shp file")
	}
	log.Info("boundary shapefile ready", zap.String("path", shpPath))
	return shpPath, nil
}

func downloadFile(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return &resilience.StatusError{URL: url, Code: resp.StatusCode}
	}

	// The archive path only appears once the transfer is complete.
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrap(err, "create file")
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return eris.Wrap(err, "write file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrap(err, "close file")
	}
	return eris.Wrap(os.Rename(tmp, dest), "rename file")
}

func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := extractEntry(f, filepath.Join(destDir, filepath.Base(f.Name))); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "open zip entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return eris.Wrapf(err, "create %s", destPath)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return eris.Wrapf(err, "extract %s", f.Name)
	}
	return eris.Wrapf(out.Close(), "close %s", destPath)
}

func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}
