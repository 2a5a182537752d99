package cli

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// releaseSource resolves a version string to an artifact to download. The
// CLI's default implementation hits a github-style release URL, but the
// interface exists so self-update can be tested against a stub server
// without reaching the network.
type releaseSource interface {
	Download(url string) (io.ReadCloser, error)
}

type httpReleaseSource struct{}

func (httpReleaseSource) Download(url string) (io.ReadCloser, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download failed: %s", resp.Status)
	}
	return resp.Body, nil
}

// binaryReplacer swaps the running executable for a freshly downloaded
// one, the way updater/mod.rs's self_update does: download to a temp path,
// rename the current executable aside, then rename the new one into
// place.
type binaryReplacer interface {
	Replace(newBinary io.Reader) error
}

type fileBinaryReplacer struct {
	execPath string
}

func (r fileBinaryReplacer) Replace(newBinary io.Reader) error {
	dir := filepath.Dir(r.execPath)

	tmp, err := os.CreateTemp(dir, "ctrcia-update-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, newBinary); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o755); err != nil {
		os.Remove(tmpPath)
		return err
	}

	oldPath := r.execPath + "_old"
	if err := os.Rename(r.execPath, oldPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move aside current executable: %w", err)
	}
	if err := os.Rename(tmpPath, r.execPath); err != nil {
		os.Rename(oldPath, r.execPath)
		return fmt.Errorf("failed to install new executable: %w", err)
	}

	return nil
}

var selfUpdateURL string

func init() {
	selfUpdateCmd.Flags().StringVar(&selfUpdateURL, "url", "", "direct download URL for the replacement binary")
	rootCmd.AddCommand(selfUpdateCmd)
}

var selfUpdateCmd = &cobra.Command{
	Use:   "self-update",
	Short: "Replace the running binary with a newer build",
	RunE: func(cmd *cobra.Command, args []string) error {
		if selfUpdateURL == "" {
			return fmt.Errorf("--url is required")
		}

		exec, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate current executable: %w", err)
		}

		var source releaseSource = httpReleaseSource{}
		body, err := source.Download(selfUpdateURL)
		if err != nil {
			return withExitCode(6, fmt.Errorf("failed to download update: %w", err))
		}
		defer body.Close()

		replacer := fileBinaryReplacer{execPath: exec}
		return replacer.Replace(body)
	},
}
