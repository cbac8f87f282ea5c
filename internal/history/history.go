package history

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/nft-amm/internal/types"
	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

const flushInterval = 30 * time.Second

// History logs fills to CSV and keeps the most recent maxRecords in memory.
type History struct {
	mu         sync.RWMutex
	csvWriter  *SafeCSVWriter
	records    []Record
	maxRecords int
	logger     *zap.Logger

	totalFills int
	fills      map[types.Direction]int
	volume     map[string]*uint256.Int
}

// New creates the history. An empty logDir keeps records in memory only.
func New(logDir string, maxRecords int, logger *zap.Logger) (*History, error) {
	if maxRecords <= 0 {
		maxRecords = 1000
	}
	h := &History{
		records:    make([]Record, 0, maxRecords),
		maxRecords: maxRecords,
		logger:     logger.Named("history"),
		fills:      make(map[types.Direction]int),
		volume:     make(map[string]*uint256.Int),
	}
	if logDir == "" {
		return h, nil
	}

	filename := fmt.Sprintf("fills_%s.csv", time.Now().Format("20060102_150405"))
	csvPath := filepath.Join(logDir, "fills", filename)

	csvWriter, err := NewSafeCSVWriter(csvPath, CSVHeaders(), flushInterval, h.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV writer: %w", err)
	}
	h.csvWriter = csvWriter

	h.logger.Info("Fill history initialized",
		zap.String("csv_file", csvPath),
		zap.Int("max_memory_records", maxRecords))

	return h, nil
}

// Log appends a record.
func (h *History) Log(r Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	if h.csvWriter != nil {
		if err := h.csvWriter.WriteRecord(r.ToCSV()); err != nil {
			h.logger.Error("Failed to write fill to CSV",
				zap.String("id", r.ID),
				zap.Error(err))
			return fmt.Errorf("failed to write fill: %w", err)
		}
	}

	if len(h.records) >= h.maxRecords {
		h.records = h.records[1:]
	}
	h.records = append(h.records, r)

	h.totalFills++
	h.fills[r.Direction]++
	if gross, err := fixedpoint.ParseAmount(r.Gross); err == nil {
		total, ok := h.volume[r.Denom]
		if !ok {
			total = new(uint256.Int)
			h.volume[r.Denom] = total
		}
		total.Add(total, gross)
	}

	h.logger.Debug("Fill logged",
		zap.String("id", r.ID),
		zap.String("pair", r.Pair),
		zap.String("direction", string(r.Direction)),
		zap.String("gross", r.Gross))

	return nil
}

// Recent returns up to limit records, oldest first. limit <= 0 returns all.
func (h *History) Recent(limit int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.records) {
		limit = len(h.records)
	}

	result := make([]Record, limit)
	copy(result, h.records[len(h.records)-limit:])
	return result
}

func (h *History) ByPair(pair string) []Record {
	return h.filter(func(r *Record) bool { return r.Pair == pair })
}

func (h *History) ByTrader(trader string) []Record {
	return h.filter(func(r *Record) bool { return r.Trader == trader })
}

func (h *History) filter(keep func(*Record) bool) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var result []Record
	for i := range h.records {
		if keep(&h.records[i]) {
			result = append(result, h.records[i])
		}
	}
	return result
}

// Statistics aggregates every fill logged since start.
type Statistics struct {
	TotalFills int               `json:"total_fills"`
	SellFills  int               `json:"sell_fills"`
	BuyFills   int               `json:"buy_fills"`
	Volume     map[string]string `json:"volume"`
}

func (h *History) Statistics() Statistics {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.statsLocked()
}

func (h *History) statsLocked() Statistics {
	stats := Statistics{
		TotalFills: h.totalFills,
		SellFills:  h.fills[types.SellToPair],
		BuyFills:   h.fills[types.BuyFromPair],
		Volume:     make(map[string]string, len(h.volume)),
	}
	for denom, v := range h.volume {
		stats.Volume[denom] = v.Dec()
	}
	return stats
}

func (h *History) Flush() error {
	if h.csvWriter == nil {
		return nil
	}
	return h.csvWriter.Flush()
}

// Close flushes and closes the CSV file.
func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := h.statsLocked()
	h.logger.Info("Closing fill history",
		zap.Int("total_fills", stats.TotalFills),
		zap.Any("volume", stats.Volume))

	if h.csvWriter == nil {
		return nil
	}
	return h.csvWriter.Close()
}
