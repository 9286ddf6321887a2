package intake

import (
	"github.com/sirupsen/logrus"

	"github.com/gisaid-prep-pipeline/internal/service"
)

// LoadSamples turns discovered sample folders into pipeline work units,
// reading each assignment document and attaching a per-folder alignment
// sequence source. Unreadable samples are skipped with a logged error so a
// single broken folder never stops the batch.
func LoadSamples(folders []SampleFolder, cacheSize int, logger *logrus.Logger) []service.Sample {
	samples := make([]service.Sample, 0, len(folders))
	for _, folder := range folders {
		raw, err := folder.LoadAssignment()
		if err != nil {
			logger.WithError(err).WithField("lims_id", folder.LimsID).Error("Skipping unreadable sample")
			continue
		}

		source, err := NewAlignmentSource(folder.Dir, cacheSize, logger)
		if err != nil {
			logger.WithError(err).WithField("lims_id", folder.LimsID).Error("Skipping sample without sequence source")
			continue
		}

		samples = append(samples, service.Sample{
			LimsID:    folder.LimsID,
			Raw:       raw,
			Sequences: source,
		})
	}
	return samples
}
