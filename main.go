package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ossyrian/vstarfw/internal/config"
	"github.com/ossyrian/vstarfw/internal/firmware"
	"github.com/ossyrian/vstarfw/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "vstarfw",
	Short: "Extract and create VStarCam wi-fi camera firmware files",
	Long: `vstarfw unpacks a VStarCam firmware file into its payload files plus a
buildfile (tab-separated path and filename pairs, one per line), and packs
such a buildfile back into a firmware file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	cobra.OnInitialize(initConfig)

	def := config.Default()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")

	// actions
	rootCmd.Flags().StringP("extract", "e", "", "unpack an existing firmware file")
	rootCmd.Flags().StringP("create", "c", "", "create a new firmware file using buildfile (tab-separated path+filename pairs per line)")
	rootCmd.Flags().StringP("list", "l", "", "list the entries of a firmware file without extracting")
	rootCmd.MarkFlagsMutuallyExclusive("extract", "create", "list")

	// i/o
	rootCmd.Flags().StringP("output", "o", def.OutputFile, "firmware file written by --create")
	rootCmd.Flags().StringP("manifest", "m", def.ManifestFile, "buildfile written by --extract")
	rootCmd.Flags().StringP("dir", "d", def.PayloadDir, "directory payload files are extracted to and read from")

	// header fields
	rootCmd.Flags().Int32("header-version", def.Version, "version written for entries without one in the buildfile")
	rootCmd.Flags().Uint32("factory", def.Factory, "factory flag written for entries without one in the buildfile")
	rootCmd.Flags().Bool("keep-header-fields", false, "record version and factory in the buildfile so --create reproduces them")
	rootCmd.Flags().Bool("allow-overwrite", false, "let a later entry overwrite an earlier one with the same filename")

	// other opts
	rootCmd.Flags().String("log-level", def.LogLevel, "log level (trace, debug, info, warn, error, fatal)")
	rootCmd.Flags().String("log-output-dir", "", "directory to write log files (if set, logs are written to both stdout and file)")
	rootCmd.Flags().Bool("dry-run", false, "run without writing anything to disk (validation)")

	viper.BindPFlag("extract", rootCmd.Flags().Lookup("extract"))
	viper.BindPFlag("create", rootCmd.Flags().Lookup("create"))
	viper.BindPFlag("list", rootCmd.Flags().Lookup("list"))
	viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("manifest", rootCmd.Flags().Lookup("manifest"))
	viper.BindPFlag("payload_dir", rootCmd.Flags().Lookup("dir"))
	viper.BindPFlag("version", rootCmd.Flags().Lookup("header-version"))
	viper.BindPFlag("factory", rootCmd.Flags().Lookup("factory"))
	viper.BindPFlag("keep_header_fields", rootCmd.Flags().Lookup("keep-header-fields"))
	viper.BindPFlag("allow_overwrite", rootCmd.Flags().Lookup("allow-overwrite"))
	viper.BindPFlag("log_level", rootCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("log_output_dir", rootCmd.Flags().Lookup("log-output-dir"))
	viper.BindPFlag("dry_run", rootCmd.Flags().Lookup("dry-run"))
}

// initConfig reads in config file and environment variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "vstarfw"))
		}
		viper.AddConfigPath("/etc/vstarfw")
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
	}

	viper.SetEnvPrefix("VSTARFW")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// run performs the single action selected on the command line
func run(cmd *cobra.Command, args []string) (err error) {
	cfg = config.Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	action, err := cfg.Action()
	if err != nil {
		return err
	}

	closeLog, err := logging.Setup(os.Stdout, cfg.LogLevel, cfg.LogOutputDir)
	if err != nil {
		return fmt.Errorf("could not set up logging: %w", err)
	}
	defer func() {
		if closeErr := closeLog(); closeErr != nil && err == nil {
			err = fmt.Errorf("could not close log file: %w", closeErr)
		}
	}()

	fsys := firmware.NewFs(cfg.DryRun)
	if cfg.DryRun {
		slog.Info("dry run, nothing will be written to disk")
	}

	switch action {
	case config.ActionExtract:
		_, err = firmware.Extract(fsys, cfg)
	case config.ActionCreate:
		_, err = firmware.Create(fsys, cfg)
	case config.ActionList:
		err = list(cmd.OutOrStdout(), fsys, cfg.ListFile)
	}
	if err != nil {
		slog.Error(fmt.Sprintf("%s failed", action), "error", err)
		return err
	}

	return nil
}

// list prints one line per entry of the firmware file name
func list(w io.Writer, fsys afero.Fs, name string) error {
	infos, err := firmware.List(fsys, name)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tPATH\tFILENAME\tSIZE\tVERSION\tFACTORY\tOFFSET\tDIGEST")
	for _, info := range infos {
		filename := info.Filename
		if info.Duplicate {
			filename += " (duplicate)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			info.Index, info.Path, filename, info.FileSize,
			info.Version, info.Factory, info.Offset, info.Digest)
	}
	return tw.Flush()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
