package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats [event-id]",
	Short: "Show record counts for events",
	Long: `Shows stored photo and face counts. With an event ID the output covers
that event only; without one, all events with stored records are listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var events []string
	if len(args) == 1 {
		events = args
	} else {
		events, err = a.store.ListEvents(ctx)
		if err != nil {
			return fmt.Errorf("listing events: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No events with stored records")
			return nil
		}
	}

	fmt.Printf("%-30s %10s %10s\n", "EVENT", "PHOTOS", "FACES")
	for _, eventID := range events {
		photos, err := a.store.CountPhotos(ctx, eventID)
		if err != nil {
			return fmt.Errorf("counting photos for event %s: %w", eventID, err)
		}
		faces, err := a.store.CountFaces(ctx, eventID)
		if err != nil {
			return fmt.Errorf("counting faces for event %s: %w", eventID, err)
		}
		fmt.Printf("%-30s %10d %10d\n", eventID, photos, faces)
	}
	return nil
}
