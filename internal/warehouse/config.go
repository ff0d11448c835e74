package warehouse

import (
	"fmt"
	"os"
)

const (
	projectEnvVar        = "GL_PROJECT_ID"
	datasetEnvVar        = "GL_DATASET_ID"
	stagingDatasetEnvVar = "GL_STAGING_DATASET_ID"

	// DefaultDatasetID is the production dataset.
	DefaultDatasetID = "general_ledger"
	// DefaultStagingDatasetID is the duplicate-tolerant staging dataset.
	DefaultStagingDatasetID = "general_ledger_staging"

	accountTable            = "account"
	transactionTable        = "transaction"
	accountTransactionTable = "account_transactions"
)

// Config locates the production and staging datasets.
type Config struct {
	ProjectID        string
	DatasetID        string
	StagingDatasetID string
}

// ConfigFromEnv reads warehouse settings from the environment, applying the
// default dataset names. The project id is required.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		ProjectID:        os.Getenv(projectEnvVar),
		DatasetID:        os.Getenv(datasetEnvVar),
		StagingDatasetID: os.Getenv(stagingDatasetEnvVar),
	}
	if cfg.ProjectID == "" {
		return Config{}, fmt.Errorf("ConfigFromEnv: %s is required", projectEnvVar)
	}
	if cfg.DatasetID == "" {
		cfg.DatasetID = DefaultDatasetID
	}
	if cfg.StagingDatasetID == "" {
		cfg.StagingDatasetID = DefaultStagingDatasetID
	}
	return cfg, nil
}
