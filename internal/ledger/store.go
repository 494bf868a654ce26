package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the ledger service's SQLite database instance
var DB *gorm.DB

// StoredTransaction is one recorded purchase submission. Rows are never
// deleted; relevance windows are the reader's concern.
type StoredTransaction struct {
	gorm.Model
	TransactionHash string `gorm:"uniqueIndex"`
	Sender          string `gorm:"index"`
	Recipient       string `gorm:"index"`
	ForAddress      string `gorm:"index"`
	Chain           int    `gorm:"index"`
	Data            string
}

// InitLedgerDB opens (creating if needed) the SQLite ledger database
func InitLedgerDB(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %v", err)
		}
	}

	// Configure GORM to be less verbose
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	}

	var err error
	DB, err = gorm.Open(sqlite.Open(dbPath), config)
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}

	if err := DB.AutoMigrate(&StoredTransaction{}); err != nil {
		return fmt.Errorf("failed to migrate database: %v", err)
	}

	return nil
}

// SaveTransaction records a submission, keyed by transaction hash. Saving
// the same hash twice is a no-op, so replayed submissions are harmless.
func SaveTransaction(rec Record) error {
	if rec.TransactionHash == "" {
		return fmt.Errorf("transaction hash is required")
	}
	stored := StoredTransaction{
		TransactionHash: rec.TransactionHash,
		Sender:          rec.Sender,
		Recipient:       rec.Recipient,
		ForAddress:      rec.For,
		Chain:           rec.Chain,
		Data:            rec.Data,
	}
	return DB.Where(StoredTransaction{TransactionHash: rec.TransactionHash}).
		FirstOrCreate(&stored).Error
}

// FindTransactions returns submissions recorded for an address, optionally
// filtered by recipient locks and a created-after cutoff.
func FindTransactions(forAddress string, recipients []string, createdAfter time.Time) ([]StoredTransaction, error) {
	query := DB.Where("for_address = ?", forAddress)
	if len(recipients) > 0 {
		query = query.Where("recipient IN ?", recipients)
	}
	if !createdAfter.IsZero() {
		query = query.Where("created_at > ?", createdAfter)
	}

	var stored []StoredTransaction
	if err := query.Order("created_at DESC").Find(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to query transactions: %v", err)
	}
	return stored, nil
}
