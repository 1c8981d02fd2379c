package experiment

import "strconv"

// Args renders the configuration as the argument vector for the example
// program. Flag order follows the documented example invocation; presence
// flags are emitted only when enabled, and the rank cutoffs are passed as
// one flag followed by each cutoff.
func (c *Config) Args() []string {
	args := make([]string, 0, 40)

	if c.UseGPU {
		args = append(args, "--use_gpu")
	}
	if c.RunIndexing {
		args = append(args, "--run_indexing")
	}

	args = append(args,
		"--index_root_path", c.IndexRootPath,
		"--index_name", c.IndexName,
		"--experiment_name", c.ExperimentName,
		"--indexing_batch_size", strconv.Itoa(c.IndexingBatchSize),
		"--image_root_dir", c.ImageRootDir,
		"--dataset_path", c.DatasetPath,
		"--passage_dataset_path", c.PassageDatasetPath,
		"--use_split", c.UseSplit,
		"--nbits", strconv.Itoa(c.Nbits),
	)

	args = append(args, "--Ks")
	for _, k := range c.Ks {
		args = append(args, strconv.Itoa(k))
	}

	args = append(args,
		"--checkpoint_path", c.CheckpointPath,
		"--image_processor_name", c.ImageProcessorName,
		"--query_batch_size", strconv.Itoa(c.QueryBatchSize),
		"--num_ROIs", strconv.Itoa(c.NumROIs),
	)

	if c.CentroidSearchBatchSize != nil {
		args = append(args, "--centroid_search_batch_size", strconv.Itoa(*c.CentroidSearchBatchSize))
	}

	return args
}
