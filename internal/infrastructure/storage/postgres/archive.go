package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"pharmstock/internal/core/id"
	"pharmstock/internal/domain/reorder"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// RunArchive stores compressed snapshots of recommendation runs. Runs are
// recomputed daily and kept for a long audit horizon, so payloads above the
// threshold are zstd-compressed.
type RunArchive struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int // bytes
}

var _ reorder.Archiver = (*RunArchive)(nil)

// NewRunArchive creates a run archive service.
func NewRunArchive(txManager *TxManager) (*RunArchive, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &RunArchive{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 4 * 1024,
	}, nil
}

// archivedRecommendation is the stored shape of one recommendation. The
// basis is flattened: a snapshot must stay readable even if the in-memory
// model evolves.
type archivedRecommendation struct {
	ID             id.ID     `json:"id"`
	ProductID      id.ID     `json:"productId"`
	SKU            string    `json:"sku"`
	SupplierID     *id.ID    `json:"supplierId,omitempty"`
	CurrentStock   string    `json:"currentStock"`
	ReorderPoint   int64     `json:"reorderPoint"`
	RecommendedQty int64     `json:"recommendedQty"`
	DaysOfSupply   float64   `json:"daysOfSupply"`
	Priority       string    `json:"priority"`
	ABCClass       string    `json:"abcClass"`
	EstimatedCost  string    `json:"estimatedCost"`
	Reason         string    `json:"reason"`
	GeneratedAt    time.Time `json:"generatedAt"`
}

// ArchiveRun stores one compressed run snapshot.
func (a *RunArchive) ArchiveRun(ctx context.Context, runID id.ID, recs []reorder.Recommendation) error {
	rows := make([]archivedRecommendation, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, archivedRecommendation{
			ID:             rec.ID,
			ProductID:      rec.ProductID,
			SKU:            rec.SKU,
			SupplierID:     rec.SupplierID,
			CurrentStock:   rec.CurrentStock.String(),
			ReorderPoint:   rec.ReorderPoint,
			RecommendedQty: rec.RecommendedQty,
			DaysOfSupply:   rec.DaysOfSupply,
			Priority:       string(rec.Priority),
			ABCClass:       string(rec.ABCClass),
			EstimatedCost:  rec.EstimatedCost.String(),
			Reason:         rec.Reason(),
			GeneratedAt:    rec.GeneratedAt,
		})
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal run payload: %w", err)
	}

	algo := CompressionNone
	if len(payload) > a.compressThreshold {
		payload = a.encoder.EncodeAll(payload, nil)
		algo = CompressionZstd
	}

	sql := `
		INSERT INTO reorder_run_archive (run_id, payload, compression_algo, item_count, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	querier := a.txManager.GetQuerier(ctx)
	_, err = querier.Exec(ctx, sql, runID, payload, algo, len(recs), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert run archive: %w", err)
	}
	return nil
}

// ReadRun returns the archived snapshot of one run.
func (a *RunArchive) ReadRun(ctx context.Context, runID id.ID) (json.RawMessage, error) {
	sql := `
		SELECT payload, compression_algo
		FROM reorder_run_archive
		WHERE run_id = $1
	`

	var payload []byte
	var algo CompressionAlgo
	querier := a.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, runID).Scan(&payload, &algo); err != nil {
		return nil, fmt.Errorf("select run archive: %w", err)
	}

	if algo == CompressionZstd {
		decompressed, err := a.decoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress run archive: %w", err)
		}
		payload = decompressed
	}
	return payload, nil
}
