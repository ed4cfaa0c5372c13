// Package store persists the chain and mempool in a SQLite database. Blocks
// are kept as JSON payloads keyed by height under an explicit schema
// version; the UTXO set is not stored at all, it is rebuilt by replaying
// the chain on load, which doubles as an integrity check.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"coinsim/model"
)

// SchemaVersion guards the on-disk encoding. Any mismatch at load time is a
// hard error, never a silent fresh start.
const SchemaVersion = 1

type chainMeta struct {
	ID            uint `gorm:"primaryKey"`
	SchemaVersion int
}

type blockRecord struct {
	Height   int64  `gorm:"primaryKey"`
	Hash     string `gorm:"index"`
	PrevHash string
	Payload  []byte
}

type mempoolRecord struct {
	Hash    string `gorm:"primaryKey"`
	Payload []byte
}

type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite file at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening chain database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&chainMeta{}, &blockRecord{}, &mempoolRecord{}); err != nil {
		return nil, fmt.Errorf("migrating chain database: %w", err)
	}
	return &Store{db: db}, nil
}

// Save atomically replaces the stored state with the given chain and
// mempool.
func (s *Store) Save(blocks []*model.Block, pending []*model.Transaction) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{&chainMeta{}, &blockRecord{}, &mempoolRecord{}} {
			if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(&chainMeta{ID: 1, SchemaVersion: SchemaVersion}).Error; err != nil {
			return err
		}
		for _, block := range blocks {
			payload, err := json.Marshal(block)
			if err != nil {
				return err
			}
			rec := blockRecord{
				Height:   block.Index,
				Hash:     block.Hash,
				PrevHash: block.PrevHash,
				Payload:  payload,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}
		for _, pendingTx := range pending {
			payload, err := json.Marshal(pendingTx)
			if err != nil {
				return err
			}
			if err := tx.Create(&mempoolRecord{Hash: pendingTx.Hash, Payload: payload}).Error; err != nil {
				return err
			}
		}
		log.WithFields(log.Fields{"blocks": len(blocks), "pending": len(pending)}).Debug("chain state saved")
		return nil
	})
}

// Empty reports whether no chain has been saved yet.
func (s *Store) Empty() (bool, error) {
	var count int64
	if err := s.db.Model(&blockRecord{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}

// Load reads the persisted chain and mempool back. Unknown schema versions
// and undecodable payloads fail loudly.
func (s *Store) Load() ([]*model.Block, []*model.Transaction, error) {
	var meta chainMeta
	if err := s.db.First(&meta).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: saved chain has no metadata", model.ErrChainIntegrity)
		}
		return nil, nil, err
	}
	if meta.SchemaVersion != SchemaVersion {
		return nil, nil, fmt.Errorf("%w: unsupported schema version %d, want %d",
			model.ErrChainIntegrity, meta.SchemaVersion, SchemaVersion)
	}

	var blockRecords []blockRecord
	if err := s.db.Order("height asc").Find(&blockRecords).Error; err != nil {
		return nil, nil, err
	}
	blocks := make([]*model.Block, 0, len(blockRecords))
	for _, rec := range blockRecords {
		var block model.Block
		if err := json.Unmarshal(rec.Payload, &block); err != nil {
			return nil, nil, fmt.Errorf("%w: corrupt block payload at height %d: %v",
				model.ErrChainIntegrity, rec.Height, err)
		}
		if block.Index != rec.Height || block.Hash != rec.Hash {
			return nil, nil, fmt.Errorf("%w: block record at height %d disagrees with its payload",
				model.ErrChainIntegrity, rec.Height)
		}
		blocks = append(blocks, &block)
	}

	var mempoolRecords []mempoolRecord
	if err := s.db.Order("hash asc").Find(&mempoolRecords).Error; err != nil {
		return nil, nil, err
	}
	pending := make([]*model.Transaction, 0, len(mempoolRecords))
	for _, rec := range mempoolRecords {
		var tx model.Transaction
		if err := json.Unmarshal(rec.Payload, &tx); err != nil {
			return nil, nil, fmt.Errorf("%w: corrupt mempool payload %s: %v",
				model.ErrChainIntegrity, rec.Hash, err)
		}
		pending = append(pending, &tx)
	}
	return blocks, pending, nil
}
