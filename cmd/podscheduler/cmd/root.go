package cmd

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/armadaproject/podscheduler/internal/common"
	commonconfig "github.com/armadaproject/podscheduler/internal/common/config"
	"github.com/armadaproject/podscheduler/internal/model"
	"github.com/armadaproject/podscheduler/internal/scheduler"
	"github.com/armadaproject/podscheduler/internal/scheduler/configuration"
	"github.com/armadaproject/podscheduler/internal/specification"
)

const (
	CustomConfigLocation string = "config"
	defaultConfigPath    string = "./config/podscheduler"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "podscheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
		Short:         "Inspects pod placement decisions and the task state store",
	}

	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")
	_ = viper.BindPFlag(CustomConfigLocation, cmd.PersistentFlags().Lookup(CustomConfigLocation))

	cmd.AddCommand(
		explainCmd(),
		tasksCmd(),
		migrateDbCmd(),
	)

	return cmd
}

func loadConfig() (configuration.Configuration, error) {
	var config configuration.Configuration
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)

	if _, err := common.LoadConfig(&config, defaultConfigPath, userSpecifiedConfigs); err != nil {
		return config, err
	}
	if err := config.Validate(); err != nil {
		commonconfig.LogValidationErrors(err)
		return config, err
	}
	return config, config.Logging.Apply()
}

// openEvaluator loads the configured state store without repairing it and returns an OfferEvaluator over it.
// The returned function releases the state store's connections.
func openEvaluator(ctx context.Context, config configuration.Configuration) (*scheduler.OfferEvaluator, func(), error) {
	reg := prometheus.NewRegistry()
	persister, cleanup, err := scheduler.NewPersister(ctx, config, reg)
	if err != nil {
		return nil, nil, err
	}
	store, err := scheduler.NewReadOnlyStateStore(persister, config.StateStore)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return scheduler.NewOfferEvaluator(config.ServiceName, store, reg), cleanup, nil
}

type placementArgs struct {
	serviceSpecPath string
	offersPath      string
	podType         string
	podIndex        int
}

func (a *placementArgs) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.serviceSpecPath, "service", "", "Path to the service specification yaml")
	cmd.Flags().StringVar(&a.offersPath, "offers", "", "Path to a yaml list of offers")
	cmd.Flags().StringVar(&a.podType, "pod", "", "Type of the pod")
	cmd.Flags().IntVar(&a.podIndex, "index", 0, "Index of the pod instance")
	_ = cmd.MarkFlagRequired("service")
	_ = cmd.MarkFlagRequired("offers")
	_ = cmd.MarkFlagRequired("pod")
}

// load reads the service spec and offers named by the flags.
func (a *placementArgs) load() (*specification.PodInstance, []*model.Offer, error) {
	specData, err := os.ReadFile(a.serviceSpecPath)
	if err != nil {
		return nil, nil, err
	}
	serviceSpec, err := specification.ParseServiceSpecYAML(specData)
	if err != nil {
		return nil, nil, err
	}
	pod, err := serviceSpec.PodInstance(a.podType, a.podIndex)
	if err != nil {
		return nil, nil, err
	}
	offerData, err := os.ReadFile(a.offersPath)
	if err != nil {
		return nil, nil, err
	}
	offers, err := scheduler.ParseOffersYAML(offerData)
	if err != nil {
		return nil, nil, err
	}
	return pod, offers, nil
}
