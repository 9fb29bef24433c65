// Command qanogan trains and runs the GAN-based anomaly classifiers from
// the command line. Hyperparameters come from the environment (TOTAL_DEPTH,
// TRAINING_STEPS, BATCH_SIZE, DISCRIMINATOR_ITERATIONS, GP_WEIGHT; the
// remote backend additionally needs IBMQX_TOKEN).
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hed1ad/qanogan/pkg/classifiers"
	"github.com/hed1ad/qanogan/pkg/config"
	"github.com/hed1ad/qanogan/pkg/dataio"
	"github.com/hed1ad/qanogan/pkg/gan"
)

var (
	flagBackend   string
	flagModelDir  string
	flagTrainData string
	flagTestData  string
	flagData      string
	flagQPUURL    string
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	root := &cobra.Command{
		Use:           "qanogan",
		Short:         "GAN-based anomaly classifiers with quantum generator backends",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagBackend, "backend", "classical",
		"generator backend: classical, pqc, qnode, or remote")
	root.PersistentFlags().StringVar(&flagModelDir, "model-dir", "model",
		"directory holding the persisted model")
	root.PersistentFlags().StringVar(&flagTrainData, "train-data", "input_data/train.csv",
		"CSV of unlabeled training samples")
	root.PersistentFlags().StringVar(&flagTestData, "test-data", "input_data/test.csv",
		"CSV of labeled calibration samples, last column is the label")
	root.PersistentFlags().StringVar(&flagQPUURL, "qpu-url", "",
		"base URL of the remote execution service (remote backend)")

	train := &cobra.Command{
		Use:   "train",
		Short: "Train a classifier and persist it",
		RunE:  runTrain,
	}

	predict := &cobra.Command{
		Use:   "predict",
		Short: "Load a persisted classifier and score query samples",
		RunE:  runPredict,
	}
	predict.Flags().StringVar(&flagData, "data", "input_data/predict.csv",
		"CSV of unlabeled query samples")

	root.AddCommand(train, predict)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func loadStore() (*dataio.FeatureStore, config.TrainingConfig, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, config.TrainingConfig{}, err
	}
	store, err := dataio.NewFeatureStore(flagTrainData, flagTestData)
	if err != nil {
		return nil, config.TrainingConfig{}, err
	}
	return store, cfg, nil
}

func buildClassifier(cfg config.TrainingConfig, store *dataio.FeatureStore) (*classifiers.Classifier, error) {
	switch flagBackend {
	case "classical":
		return classifiers.NewClassical(cfg, store)
	case "pqc":
		return classifiers.NewPQCSimulator(cfg, store, nil)
	case "qnode":
		return classifiers.NewQNodeSimulator(cfg, store, nil)
	case "remote":
		dev, err := classifiers.NewDeviceConfig(flagQPUURL)
		if err != nil {
			return nil, err
		}
		return classifiers.NewRemoteQPU(cfg, store, nil, dev)
	}
	return nil, fmt.Errorf("unknown backend %q", flagBackend)
}

func loadClassifier(cfg config.TrainingConfig, store *dataio.FeatureStore) (*classifiers.Classifier, error) {
	switch flagBackend {
	case "classical":
		return classifiers.LoadClassical(flagModelDir, cfg, store)
	case "pqc":
		return classifiers.LoadPQCSimulator(flagModelDir, cfg, store)
	case "qnode":
		return classifiers.LoadQNodeSimulator(flagModelDir, cfg, store)
	case "remote":
		dev, err := classifiers.NewDeviceConfig(flagQPUURL)
		if err != nil {
			return nil, err
		}
		return classifiers.LoadRemoteQPU(flagModelDir, cfg, store, dev)
	}
	return nil, fmt.Errorf("unknown backend %q", flagBackend)
}

func runTrain(cmd *cobra.Command, _ []string) error {
	store, cfg, err := loadStore()
	if err != nil {
		return err
	}

	c, err := buildClassifier(cfg, store)
	if err != nil {
		return err
	}
	if err := c.Train(); err != nil {
		return err
	}
	if err := c.Save(flagModelDir); err != nil {
		return err
	}

	if last, ok := c.History().Last(); ok {
		log.Info().
			Int("step", last.Step).
			Float64("discriminatorLoss", last.DiscriminatorLoss).
			Float64("generatorLoss", last.GeneratorLoss).
			Msg("final losses")
	}
	return nil
}

func runPredict(cmd *cobra.Command, _ []string) error {
	store, cfg, err := loadStore()
	if err != nil {
		return err
	}

	c, err := loadClassifier(cfg, store)
	if err != nil {
		return err
	}
	results, err := c.PredictFile(flagData)
	if err != nil {
		return err
	}
	return printResults(cmd, results)
}

func printResults(cmd *cobra.Command, results []gan.Result) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, res := range results {
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	return nil
}
