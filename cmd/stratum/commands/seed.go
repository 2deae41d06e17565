package commands

import (
	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/logger"
	"github.com/stratumdb/stratum/provenance"
	"github.com/stratumdb/stratum/store"
)

// SeedCmd installs the primitive data types.
var SeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the primitive data types",
	Long: `Install the primitive data types (text, number, boolean, null,
object, empty list) into the system web.

Already-seeded types are skipped, so the command is safe to run repeatedly.
Without --web a fresh web is registered and its id printed.`,
	RunE: runSeed,
}

var seedWebFlag string

func init() {
	SeedCmd.Flags().StringVar(&seedWebFlag, "web", "", "Web (owner) UUID to seed into; default: register a new one")
}

func runSeed(cmd *cobra.Command, args []string) error {
	database, _, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	webUUID := uuid.New()
	if seedWebFlag != "" {
		webUUID, err = uuid.Parse(seedWebFlag)
		if err != nil {
			return errors.Wrapf(err, "invalid web id %q", seedWebFlag)
		}
	}
	ownedBy := provenance.NewOwnedByID(webUUID)
	actor := provenance.NewAccountID(webUUID)

	s := store.NewStore(database, logger.Named("seed"))
	ctx := cmd.Context()

	if err := s.InsertAccountID(ctx, actor, actor); err != nil && !errors.IsAlreadyExistsError(err) {
		return err
	}

	seeded, err := s.SeedDataTypes(ctx, ownedBy, actor)
	if err != nil {
		return err
	}

	if seeded == 0 {
		pterm.Info.Println("Primitive data types already seeded")
		return nil
	}
	pterm.Success.Printf("Seeded %d primitive data type(s) into web %s\n", seeded, webUUID)
	return nil
}
