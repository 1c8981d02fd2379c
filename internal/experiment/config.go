package experiment

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every flag forwarded to the retrieval example program.
// Field order mirrors the documented example invocation.
type Config struct {
	UseGPU             bool   `yaml:"use_gpu"`
	RunIndexing        bool   `yaml:"run_indexing"`
	IndexRootPath      string `yaml:"index_root_path"`
	IndexName          string `yaml:"index_name"`
	ExperimentName     string `yaml:"experiment_name"`
	IndexingBatchSize  int    `yaml:"indexing_batch_size"`
	ImageRootDir       string `yaml:"image_root_dir"`
	DatasetPath        string `yaml:"dataset_path"`
	PassageDatasetPath string `yaml:"passage_dataset_path"`
	UseSplit           string `yaml:"use_split"`
	Nbits              int    `yaml:"nbits"`
	Ks                 []int  `yaml:"ks"`
	CheckpointPath     string `yaml:"checkpoint_path"`
	ImageProcessorName string `yaml:"image_processor_name"`
	QueryBatchSize     int    `yaml:"query_batch_size"`
	NumROIs            int    `yaml:"num_rois"`

	// CentroidSearchBatchSize is forwarded only when set; the example
	// program picks its own value otherwise.
	CentroidSearchBatchSize *int `yaml:"centroid_search_batch_size,omitempty"`
}

// Default returns a configuration matching the example program's own
// argument defaults.
func Default() Config {
	return Config{
		IndexRootPath:      ".",
		IndexName:          "OKVQA_GS",
		ExperimentName:     "OKVQA_GS",
		IndexingBatchSize:  64,
		ImageRootDir:       "./ok-vqa/",
		DatasetPath:        "OKVQA_FLMR_prepared_data.hf",
		PassageDatasetPath: "OKVQA_FLMR_prepared_passages_with_GoogleSearch_corpus.hf",
		UseSplit:           "test",
		Nbits:              8,
		Ks:                 []int{5, 10, 20, 50, 100},
		CheckpointPath:     "./converted_flmr",
		ImageProcessorName: "openai/clip-vit-base-patch32",
		QueryBatchSize:     8,
		NumROIs:            9,
	}
}

// Load reads a configuration from a YAML file. Values absent from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for values the example program would reject.
func (c *Config) Validate() error {
	for _, f := range []struct {
		name  string
		value int
	}{
		{"indexing_batch_size", c.IndexingBatchSize},
		{"nbits", c.Nbits},
		{"query_batch_size", c.QueryBatchSize},
		{"num_rois", c.NumROIs},
	} {
		if f.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", f.name, f.value)
		}
	}

	if c.CentroidSearchBatchSize != nil && *c.CentroidSearchBatchSize <= 0 {
		return fmt.Errorf("centroid_search_batch_size must be positive, got %d", *c.CentroidSearchBatchSize)
	}

	for _, f := range []struct {
		name  string
		value string
	}{
		{"index_root_path", c.IndexRootPath},
		{"index_name", c.IndexName},
		{"experiment_name", c.ExperimentName},
		{"image_root_dir", c.ImageRootDir},
		{"dataset_path", c.DatasetPath},
		{"passage_dataset_path", c.PassageDatasetPath},
		{"use_split", c.UseSplit},
		{"checkpoint_path", c.CheckpointPath},
		{"image_processor_name", c.ImageProcessorName},
	} {
		if f.value == "" {
			return fmt.Errorf("%s must not be empty", f.name)
		}
	}

	if len(c.Ks) == 0 {
		return fmt.Errorf("ks must contain at least one cutoff")
	}
	for i, k := range c.Ks {
		if k <= 0 {
			return fmt.Errorf("ks must be positive, got %d", k)
		}
		if i > 0 && k <= c.Ks[i-1] {
			return fmt.Errorf("ks must be strictly ascending, got %v", c.Ks)
		}
	}

	return nil
}
