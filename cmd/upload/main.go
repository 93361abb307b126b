// Command upload drives the chunked, resumable upload pipeline from the
// command line: it requests signed upload parameters from the API server,
// streams the file to the remote store chunk by chunk, and finalizes the
// completed upload onto the submission record.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sunilgawai/pitchreel/internal/service"
	"github.com/sunilgawai/pitchreel/internal/storage"
	"github.com/sunilgawai/pitchreel/internal/uploader"

	"github.com/spf13/cobra"
)

var (
	flagServer     string
	flagSubmission string
	flagFile       string
	flagStateDir   string
	flagChunkSize  int64
	flagRetries    int
	flagRetryDelay time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a recording to a pitchreel submission",
		Long: "Uploads a video file in resumable chunks. An interrupted run keeps its\n" +
			"progress on disk; re-running the same command resumes from the first\n" +
			"uncommitted chunk.",
		RunE: run,
	}

	rootCmd.Flags().StringVar(&flagServer, "server", "http://localhost:8080", "base URL of the pitchreel API server")
	rootCmd.Flags().StringVar(&flagSubmission, "submission", "", "submission ID the upload belongs to")
	rootCmd.Flags().StringVar(&flagFile, "file", "", "path of the video file to upload")
	rootCmd.Flags().StringVar(&flagStateDir, "state-dir", ".pitchreel/sessions", "directory holding resumable session state")
	rootCmd.Flags().Int64Var(&flagChunkSize, "chunk-size", uploader.DefaultChunkSize, "chunk size in bytes")
	rootCmd.Flags().IntVar(&flagRetries, "retries", 3, "additional attempts per chunk after the first")
	rootCmd.Flags().DurationVar(&flagRetryDelay, "retry-delay", time.Second, "first retry backoff; doubles per attempt")
	_ = rootCmd.MarkFlagRequired("submission")
	_ = rootCmd.MarkFlagRequired("file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{}
	base := strings.TrimRight(flagServer, "/")

	params, err := signUpload(ctx, client, base)
	if err != nil {
		return fmt.Errorf("could not obtain signed upload parameters: %w", err)
	}

	store, err := uploader.NewFileSessionStore(flagStateDir, 0)
	if err != nil {
		return err
	}

	up := uploader.New(uploader.Config{
		ChunkSize:  flagChunkSize,
		MaxRetries: flagRetries,
		RetryDelay: flagRetryDelay,
		Store:      store,
		OnProgress: func(p uploader.Progress) {
			fmt.Fprintf(os.Stderr, "\r%6.2f%%  chunk %d/%d  %s/s  eta %s   ",
				p.Percent, p.ChunkIndex+1, p.TotalChunks,
				humanBytes(int64(p.BytesPerSecond)), p.ETA.Round(time.Second))
		},
	})

	result, err := up.Upload(ctx, flagFile, params)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("upload failed (progress is kept; re-run to resume): %w", err)
	}

	info, err := os.Stat(flagFile)
	if err != nil {
		return err
	}

	video, err := finalize(ctx, client, base, result, info)
	if err != nil {
		return fmt.Errorf("upload succeeded but finalize failed: %w", err)
	}

	fmt.Printf("Uploaded %s (%s) -> %s\n", video.FileName, humanBytes(video.Size), video.URL)
	return nil
}

// signUpload asks the API server for the pre-signed chunk parameters.
func signUpload(ctx context.Context, client *http.Client, base string) (*storage.UploadParams, error) {
	url := fmt.Sprintf("%s/api/v1/submissions/%s/sign-upload", base, flagSubmission)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var params storage.UploadParams
	if err := json.Unmarshal(body, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

type finalizedVideo struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
}

type finalizeResponse struct {
	Success bool           `json:"success"`
	Video   finalizedVideo `json:"video"`
}

// finalize commits the completed upload's metadata onto the submission.
// This must run exactly once per physical upload.
func finalize(ctx context.Context, client *http.Client, base string, result *uploader.Result, info os.FileInfo) (*finalizedVideo, error) {
	payload := map[string]interface{}{
		"uploadResult": service.UploadResult{
			URL:      result.SecureURL,
			RemoteID: result.RemoteID,
			Bytes:    result.Bytes,
			Duration: result.Duration,
			Width:    result.Width,
			Height:   result.Height,
		},
		"fileName": info.Name(),
		"fileSize": info.Size(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v1/submissions/%s/finalize-upload", base, flagSubmission)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var fr finalizeResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, err
	}
	return &fr.Video, nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
