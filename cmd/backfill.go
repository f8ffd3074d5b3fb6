package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/facefind/facefind/internal/service"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill [event-id] [manifest-file]",
	Short: "Ingest an event's photos from a manifest file",
	Long: `Ingests a whole event from a manifest file. Each line of the manifest
names one photo: a photo ID and an image URL separated by whitespace.
Blank lines and lines starting with # are skipped.

Photos are processed in pages with bounded concurrency. A failed photo
is reported and skipped; the backfill continues.`,
	Args: cobra.ExactArgs(2),
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().Int("concurrency", 4, "Number of photos processed in parallel")
	backfillCmd.Flags().Int("page-size", 100, "Photos per ingest batch")
}

// readManifest parses the backfill manifest into batch photos.
func readManifest(path string) ([]service.BatchPhoto, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	var photos []service.BatchPhoto
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("manifest line %d: want \"photo-id image-url\", got %q", lineNo, line)
		}
		photos = append(photos, service.BatchPhoto{PhotoID: fields[0], ImageURL: fields[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return photos, nil
}

func runBackfill(cmd *cobra.Command, args []string) error {
	eventID, manifestPath := args[0], args[1]
	concurrency := mustGetInt(cmd, "concurrency")
	pageSize := mustGetInt(cmd, "page-size")
	if pageSize <= 0 {
		pageSize = 100
	}

	photos, err := readManifest(manifestPath)
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		fmt.Println("Manifest is empty, nothing to do")
		return nil
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	bar := progressbar.NewOptions(len(photos),
		progressbar.OptionSetDescription("Ingesting photos"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var ingested, failed, totalFaces int
	var failures []service.BatchItem

	for start := 0; start < len(photos); start += pageSize {
		end := min(start+pageSize, len(photos))

		result, err := a.ingest.IngestBatch(cmd.Context(), eventID, photos[start:end], concurrency)
		if err != nil {
			return fmt.Errorf("batch starting at photo %d: %w", start, err)
		}

		ingested += result.Ingested
		failed += result.Failed
		for _, item := range result.Items {
			if item.Error != "" {
				failures = append(failures, item)
			}
			totalFaces += item.FacesIndexed
		}
		bar.Add(end - start)
	}
	fmt.Println()

	fmt.Printf("\nBackfill complete for event %s\n", eventID)
	fmt.Printf("  Photos ingested: %d\n", ingested)
	fmt.Printf("  Photos failed:   %d\n", failed)
	fmt.Printf("  Faces indexed:   %d\n", totalFaces)

	for _, item := range failures {
		fmt.Printf("  FAILED %s: %s\n", item.PhotoID, item.Error)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d photos failed", failed, len(photos))
	}
	return nil
}
