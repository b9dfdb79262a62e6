package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/siterank/internal/config"
)

var weightsCmd = &cobra.Command{
	Use:   "weights [profile.toml]",
	Short: "Print the effective weight profile as TOML",
	Long: `Prints the link position weights and performance score weights used by
analyze. With a profile path, the file is merged over the defaults and
validated first. The output is itself a valid profile.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWeights,
}

func init() {
	rootCmd.AddCommand(weightsCmd)
}

func runWeights(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	profile, err := config.LoadProfile(path)
	if err != nil {
		return &inputError{err: err}
	}
	out, err := profile.Encode()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
