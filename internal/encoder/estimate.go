package encoder

import (
	"encoding/json"

	"github.com/kenneth/rbuvault/internal/blobseg"
	"github.com/kenneth/rbuvault/internal/containerfmt"
	"github.com/kenneth/rbuvault/internal/model"
)

// EstimateSize returns a conservative upper bound on the encoded container
// size, for UI progress bars. Accuracy is best-effort; the real size is
// only known once encoding completes.
func EstimateSize(manifest model.Manifest, database model.Database, blobs []model.BlobRef) (int64, error) {
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return 0, err
	}
	databaseJSON, err := json.Marshal(database)
	if err != nil {
		return 0, err
	}

	total := int64(containerfmt.HeaderSize)
	total += int64(containerfmt.ChunkHeaderSize) + containerfmt.TagSize + int64(float64(len(manifestJSON))*0.3)
	total += int64(containerfmt.ChunkHeaderSize) + containerfmt.TagSize + int64(float64(len(databaseJSON))*0.3)

	const headerJSONEstimate = 96 // rough size of one blob-header JSON object
	for _, b := range blobs {
		parts := blobseg.PartCount(b.Size)
		total += int64(parts) * int64(containerfmt.ChunkHeaderSize+headerJSONEstimate)
		total += b.Size + containerfmt.TagSize
	}

	return total, nil
}
