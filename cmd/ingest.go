package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [event-id] [photo-id] [image-url]",
	Short: "Ingest a single photo into an event",
	Long: `Downloads the image, detects faces through the embedding provider,
and stores the face records. Re-ingesting a photo replaces its previous
records.`,
	Args: cobra.ExactArgs(3),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	eventID, photoID, imageURL := args[0], args[1], args[2]

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	faces, err := a.ingest.IngestPhoto(cmd.Context(), eventID, photoID, imageURL, nil)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("Event: %s\n", eventID)
	fmt.Printf("Photo: %s\n", photoID)
	fmt.Printf("Faces indexed: %d\n", faces)
	return nil
}
