package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/genomehub/metareg/pkg/config"
	"github.com/genomehub/metareg/pkg/service"
)

var (
	cfgFile string
	log     = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "metareg",
	Short: "Genome metadata registry",
	Long: `metareg tracks the derived data products of a genome annotation
pipeline: which datasets exist per genome, what processing stage each has
reached and which public release each belongs to.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default metareg.yaml)")
	rootCmd.PersistentFlags().String("store-url", "", "database URL of the registry store")
	rootCmd.PersistentFlags().String("log-level", "INFO", "log level")
	rootCmd.PersistentFlags().Int64("site-id", 1, "site the releases belong to")

	_ = viper.BindPFlag("store_url", rootCmd.PersistentFlags().Lookup("store-url"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("site_id", rootCmd.PersistentFlags().Lookup("site-id"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("metareg")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("METAREG")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
}

// loadConfig materializes the engine configuration from flags, env and file.
// The engine itself only ever sees the explicit struct.
func loadConfig() *config.Config {
	cfg := config.Default()
	cfg.StoreURL = viper.GetString("store_url")
	cfg.SiteID = viper.GetInt64("site_id")
	cfg.LogLevel = viper.GetString("log_level")
	if kinds := viper.GetStringSlice("essential_kinds"); len(kinds) > 0 {
		cfg.EssentialKinds = kinds
	}
	if kinds := viper.GetStringSlice("release_exempt_kinds"); len(kinds) > 0 {
		cfg.ReleaseExemptKinds = kinds
	}
	if address := viper.GetString("address"); address != "" {
		cfg.Address = address
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return cfg
}

func newService() (*service.MetadataService, error) {
	return service.NewMetadataService(log, loadConfig())
}
